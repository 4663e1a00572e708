package tools

import "chatconnect.app/assistant/internal/model"

// Batch is a set of calls executed together.
type Batch struct {
	Calls []*model.FunctionCall
}

func (b Batch) IDs() []string {
	ids := make([]string, len(b.Calls))
	for i, c := range b.Calls {
		ids[i] = c.ID
	}
	return ids
}

// GroupBatches walks content in order and groups consecutive fill calls that
// include accepts into one batch. Every other accepted call forms a batch of
// its own. Content that is not an accepted call ends the current batch.
func GroupBatches(content model.Contents, include func(*model.FunctionCall) bool) []Batch {
	var (
		batches []Batch
		current []*model.FunctionCall
	)
	flush := func() {
		if len(current) > 0 {
			batches = append(batches, Batch{Calls: current})
			current = nil
		}
	}

	for _, item := range content {
		fc, ok := item.(*model.FunctionCall)
		if !ok || (include != nil && !include(fc)) {
			flush()
			continue
		}
		if isFill(fc) {
			current = append(current, fc)
			continue
		}
		flush()
		batches = append(batches, Batch{Calls: []*model.FunctionCall{fc}})
	}
	flush()
	return batches
}

func isFill(fc *model.FunctionCall) bool {
	d, ok := Lookup(fc.Name)
	return ok && d.Kind == KindFill
}

// Idle accepts calls that have not started.
func Idle(fc *model.FunctionCall) bool {
	return fc.Status == model.FunctionCallStatusIdle
}

// Policy decides which tool calls run without the user's confirmation.
type Policy struct {
	auto map[string]bool
}

func NewPolicy(autoExecute []string) Policy {
	p := Policy{auto: make(map[string]bool, len(autoExecute))}
	for _, name := range autoExecute {
		p.auto[name] = true
	}
	return p
}

func (p Policy) AutoExecutable(fc *model.FunctionCall) bool {
	return fc.Status == model.FunctionCallStatusIdle && p.auto[fc.Name]
}

// AutoBatches returns the batches of msg that may run immediately.
func (p Policy) AutoBatches(msg *model.Message) []Batch {
	return GroupBatches(msg.Content, p.AutoExecutable)
}
