package cli

import (
	"errors"
	"fmt"

	"github.com/shaiso/rpabot/internal/domain"
)

// ErrInvalidStartStep — аргумент start-step не является числом ≥ 1.
var ErrInvalidStartStep = errors.New("start step must be an integer >= 1")

// ExitError — run завершился статусом, требующим ненулевого кода выхода.
type ExitError struct {
	Code   int
	Status domain.RunStatus
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("run finished with status %s", e.Status)
}

// ExitCode возвращает код выхода процесса для ошибки команды.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

// exitError возвращает ошибку для статусов, которые считаются провалом.
func exitError(status domain.RunStatus) error {
	if status == domain.RunStatusFailed {
		return &ExitError{Code: 1, Status: status}
	}
	return nil
}
