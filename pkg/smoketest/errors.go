package smoketest

import "fmt"

// Step names the stage of a smoke test run.
type Step string

const (
	StepConnect  Step = "connect"
	StepResolve  Step = "resolve contracts"
	StepBalances Step = "fetch balances"
	StepTransfer Step = "transfer"
	StepVerify   Step = "verify balances"
	StepStop     Step = "stop"
)

// SmokeTestError reports the step a smoke test run failed at.
type SmokeTestError struct {
	Step Step
	Err  error
}

func (e *SmokeTestError) Error() string {
	return fmt.Sprintf("smoke test failed at %s: %s", e.Step, e.Err)
}

func (e *SmokeTestError) Unwrap() error {
	return e.Err
}
