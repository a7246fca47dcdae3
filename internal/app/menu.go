package app

import (
	"context"
	"strings"

	"rentara/internal/domain/ussd"
)

// anyInput matches every token in list and free-text states.
const anyInput = "*"

// backInput returns to the main menu from any depth.
const backInput = "0"

// menuAction is a method expression on menuWalk.
type menuAction func(w *menuWalk, ctx context.Context, input string) (ussd.Reply, error)

type transitionKey struct {
	from  ussd.State
	input string
}

// transition is one edge of the menu. A terminal transition ends the dialog,
// so any token after it is an invalid option and the action is not run.
type transition struct {
	to       ussd.State
	action   menuAction
	terminal bool
}

var transitions = map[transitionKey]transition{
	{ussd.StateMainMenu, "1"}: {to: ussd.StateMainMenu, action: (*menuWalk).checkBalance, terminal: true},
	{ussd.StateMainMenu, "2"}: {to: ussd.StatePayRentSelectUnit, action: (*menuWalk).listPayUnits},
	{ussd.StateMainMenu, "3"}: {to: ussd.StateMaintenanceSelectUnit, action: (*menuWalk).listMaintenanceUnits},
	{ussd.StateMainMenu, "4"}: {to: ussd.StateMainMenu, action: (*menuWalk).leaseInfo, terminal: true},

	{ussd.StatePayRentSelectUnit, anyInput}:  {to: ussd.StatePayRentSelectMonth, action: (*menuWalk).selectPayUnit},
	{ussd.StatePayRentSelectMonth, anyInput}: {to: ussd.StateMainMenu, action: (*menuWalk).confirmPayment, terminal: true},

	{ussd.StateMaintenanceSelectUnit, anyInput}: {to: ussd.StateMaintenanceEnterDesc, action: (*menuWalk).selectMaintenanceUnit},
	{ussd.StateMaintenanceEnterDesc, anyInput}:  {to: ussd.StateMainMenu, action: (*menuWalk).submitMaintenance, terminal: true},
}

func lookupTransition(from ussd.State, input string) (transition, bool) {
	if t, ok := transitions[transitionKey{from, input}]; ok {
		return t, true
	}
	t, ok := transitions[transitionKey{from, anyInput}]
	return t, ok
}

// walkResult is where a path ends up.
type walkResult struct {
	reply ussd.Reply
	state ussd.State // state after the last token
	prev  ussd.State // state before the last token
}

// walk replays tokens from the main menu. Only the reply of the last step is
// returned, but every step's action runs so selections are validated against
// fresh data. A step that ends the dialog stops the walk.
func (w *menuWalk) walk(ctx context.Context, tokens []string) (walkResult, error) {
	res := walkResult{
		reply: ussd.Continue(w.text.T("main_menu", nil)),
		state: ussd.StateMainMenu,
		prev:  ussd.StateMainMenu,
	}

	for i := 0; i < len(tokens); i++ {
		res.prev = res.state
		input := strings.TrimSpace(tokens[i])

		if input == backInput {
			w.reset()
			res.state = ussd.StateMainMenu
			res.reply = ussd.Continue(w.text.T("main_menu", nil))
			continue
		}
		// The description is free text and may itself contain the separator.
		if res.state == ussd.StateMaintenanceEnterDesc {
			input = strings.TrimSpace(strings.Join(tokens[i:], " "))
			i = len(tokens) - 1
		}

		t, ok := lookupTransition(res.state, input)
		// Backing out of a finished option returns to the menu without re-running it.
		if ok && t.terminal && i < len(tokens)-1 && strings.TrimSpace(tokens[i+1]) == backInput {
			continue
		}
		if !ok || (t.terminal && i < len(tokens)-1) {
			return w.end(res, ussd.End(w.text.T("invalid_option", nil))), nil
		}

		reply, err := t.action(w, ctx, input)
		if err != nil {
			return res, err
		}
		if reply.End {
			return w.end(res, reply), nil
		}
		res.state = t.to
		res.reply = reply
	}
	return res, nil
}

func (w *menuWalk) end(res walkResult, reply ussd.Reply) walkResult {
	res.reply = reply
	res.state = ussd.StateMainMenu
	return res
}
