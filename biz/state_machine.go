package biz

import (
	"github.com/smallnest/gofsm"
	"github.com/vearne/netvine/metrics"
	"github.com/vearne/netvine/model"
	slog "github.com/vearne/simplelog"
)

const (
	EventStart      = "START"
	EventOpenFailed = "OPEN_FAILED"
	EventStop       = "STOP"
	EventFinish     = "FINISH"
	EventFail       = "FAIL"
)

var workerStates = []string{
	string(model.StateIdle),
	string(model.StateRunning),
	string(model.StateStopping),
	string(model.StateStopped),
	string(model.StateFailed),
}

// WorkerEventProcessor applies state changes to the *Worker passed as the
// first trigger argument. The caller holds the worker lock.
type WorkerEventProcessor struct{}

func (p *WorkerEventProcessor) Action(action string, fromState string, toState string, args []interface{}) error {
	w := args[0].(*Worker)
	switch action {
	case "change-state":
		slog.Info("[WORKER] change-state, fromState:[%v] -> toState:[%v]", fromState, toState)
	default:
		slog.Debug("[WORKER] unknow action: %v, state:%v", action, w.state)
	}
	return nil
}

func (p *WorkerEventProcessor) OnActionFailure(action string, fromState string, toState string, args []interface{}, err error) {
	slog.Error("[WORKER] action %v failed, fromState:[%v] -> toState:[%v], error:%v",
		action, fromState, toState, err)
}

func (p *WorkerEventProcessor) OnExit(fromState string, args []interface{}) {
}

func (p *WorkerEventProcessor) OnEnter(toState string, args []interface{}) {
	w := args[0].(*Worker)
	w.state = model.State(toState)
	w.metrics.SetWorkerState(toState, workerStates)
}

func InitWorkerFSM(processor fsm.EventProcessor) *fsm.StateMachine {
	delegate := &fsm.DefaultDelegate{P: processor}
	idle, running, stopping := string(model.StateIdle), string(model.StateRunning), string(model.StateStopping)
	stopped, failed := string(model.StateStopped), string(model.StateFailed)

	transitions := []fsm.Transition{
		// 1. start, from any resting state
		{From: idle, Event: EventStart, To: running, Action: "change-state"},
		{From: stopped, Event: EventStart, To: running, Action: "change-state"},
		{From: failed, Event: EventStart, To: running, Action: "change-state"},
		{From: idle, Event: EventOpenFailed, To: failed, Action: "change-state"},
		{From: stopped, Event: EventOpenFailed, To: failed, Action: "change-state"},
		{From: failed, Event: EventOpenFailed, To: failed, Action: "change-state"},

		// 2. stop on request
		{From: running, Event: EventStop, To: stopping, Action: "change-state"},
		{From: stopping, Event: EventFinish, To: stopped, Action: "change-state"},
		{From: stopping, Event: EventFail, To: stopped, Action: "change-state"},

		// 3. the session ended by itself
		{From: running, Event: EventFinish, To: stopped, Action: "change-state"},
		{From: running, Event: EventFail, To: failed, Action: "change-state"},
	}
	return fsm.NewStateMachine(delegate, transitions...)
}
