package example

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type FunctionCallStatus string

const (
	FunctionCallStatusIdle    FunctionCallStatus = "idle"
	FunctionCallStatusSuccess FunctionCallStatus = "success"
)

type Action string

const ActionClickElement Action = "click_element"

type Message struct {
	Role Role
	Text string
}

type FunctionCall struct {
	Status FunctionCallStatus
}

type Command struct {
	Action Action
}

func bad() {
	m := &Message{}
	m.Role = "system" // want "enum field Role assigned string literal"

	fc := &FunctionCall{}
	fc.Status = "done" // want "enum field Status assigned string literal"

	_ = Command{Action: "scroll"} // want "enum field Action assigned string literal"
}

func good() {
	m := &Message{}
	m.Role = RoleAssistant // OK: using constant
	m.Text = "hello"       // OK: not an enum

	fc := &FunctionCall{Status: FunctionCallStatusSuccess}
	_ = fc

	_ = Command{Action: ActionClickElement}
}

func alsoGood() {
	// OK: Variable, not literal
	role := RoleUser
	m := &Message{Role: role}
	_ = m
}
