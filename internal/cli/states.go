package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/rpabot/internal/steps"
)

// stateRow — строка вывода команды states.
type stateRow struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// NewStatesCmd создаёт команду вывода таблицы шагов.
func NewStatesCmd(outputFn func() (*Output, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "states",
		Short: "List process states in execution order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := outputFn()
			if err != nil {
				return err
			}
			printStates(out, steps.DefaultTable())
			return nil
		},
	}
}

func printStates(out *Output, t *steps.Table) {
	entries := t.Entries()
	rows := make([][]string, len(entries))
	data := make([]stateRow, len(entries))
	for i, e := range entries {
		rows[i] = []string{strconv.Itoa(e.Index), e.Name}
		data[i] = stateRow{Index: e.Index, Name: e.Name}
	}
	out.Print([]string{"INDEX", "NAME"}, rows, data)
}
