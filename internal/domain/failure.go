package domain

// FailureRecord — описание ошибки, прервавшей run.
//
// Создаётся в момент, когда run прерывается: сразу при business failure
// или после исчерпания попыток при system failure. Потребляется
// ExecutionReporter один раз.
type FailureRecord struct {
	// Kind — класс ошибки.
	Kind FailureKind `json:"kind"`

	// StepIndex — индекс шага, на котором произошла ошибка.
	StepIndex int `json:"step_index"`

	// StepName — имя шага.
	StepName string `json:"step_name,omitempty"`

	// Attempts — сколько попыток шага было сделано.
	Attempts int `json:"attempts"`

	// Message — человекочитаемое сообщение.
	Message string `json:"message"`

	// Trace — сырой стек вызовов (только для SYSTEM).
	Trace string `json:"trace,omitempty"`

	// Business — данные для письма о business exception (только для BUSINESS).
	Business *BusinessPayload `json:"business,omitempty"`
}

// TraceFrame — один кадр стека в отчёте об ошибке.
type TraceFrame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
	Code     string `json:"code"`
}

// BusinessPayload — шаблон письма, который шаг передаёт вместе с
// business failure. Пересылается без изменений.
type BusinessPayload struct {
	// BodyFile — путь к HTML-шаблону тела письма.
	BodyFile string `json:"BODY_FILE"`

	// Subject — тема письма.
	Subject string `json:"SUBJECT"`

	// MailType — колонка в файле получателей (например, BUSINESS_EXCEPTION).
	MailType string `json:"MAIL_TYPE"`

	// Attachments — пути к вложениям.
	Attachments []string `json:"ATTACHMENTS"`

	// BodyFields — позиционные значения для шаблона тела.
	BodyFields []string `json:"BODY_FIELDS"`
}
