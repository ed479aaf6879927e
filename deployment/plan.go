package deployment

import (
	"encoding/json"
	"os"

	"github.com/crytic/plum/logging/colors"
	"github.com/crytic/plum/utils"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/tidwall/jsonc"
	"golang.org/x/net/context"
)

// StepAction describes what a plan step does.
type StepAction string

const (
	// DeployAction deploys a new instance of a contract.
	DeployAction StepAction = "deploy"
	// CallAction calls a read-only method and logs its outputs.
	CallAction StepAction = "call"
	// TransactAction submits a transaction calling a method.
	TransactAction StepAction = "transact"
)

// Plan is a declarative deployment script: an ordered list of steps run one after the other. A step failure stops
// the plan.
type Plan struct {
	// Steps lists the steps of the plan in order.
	Steps []PlanStep `json:"steps"`
}

// PlanStep describes a single step of a Plan.
type PlanStep struct {
	// Action is what the step does.
	Action StepAction `json:"action"`

	// Contract is the name of the contract the step concerns.
	Contract string `json:"contract"`

	// Method is the method called by call and transact steps.
	Method string `json:"method,omitempty"`

	// Address is the instance called by call and transact steps. If empty, the latest deployment is used.
	Address string `json:"address,omitempty"`

	// Args holds the constructor or method arguments.
	Args []json.RawMessage `json:"args,omitempty"`

	// From overrides the sender.
	From string `json:"from,omitempty"`

	// Gas overrides the gas limit.
	Gas uint64 `json:"gas,omitempty"`

	// Value is the amount of wei sent along, as a decimal or hex string.
	Value string `json:"value,omitempty"`
}

// ParsePlan parses a plan. Comments and trailing commas are allowed.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := json.Unmarshal(jsonc.ToJSON(data), &plan); err != nil {
		return nil, errors.Wrap(err, "could not parse deployment plan")
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// ReadPlanFromFile reads and parses a plan.
func ReadPlanFromFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ParsePlan(data)
}

// Validate returns an error describing the first malformed step.
func (p *Plan) Validate() error {
	for i, step := range p.Steps {
		if err := step.validate(); err != nil {
			return errors.WithMessagef(err, "step %d", i+1)
		}
	}
	return nil
}

// validate returns an error if the step is malformed.
func (s *PlanStep) validate() error {
	if s.Contract == "" {
		return errors.New("a contract must be named")
	}
	switch s.Action {
	case DeployAction:
		if s.Method != "" || s.Address != "" {
			return errors.New("deploy steps cannot name a method or an address")
		}
	case CallAction, TransactAction:
		if s.Method == "" {
			return errors.Errorf("%s steps must name a method", s.Action)
		}
	default:
		return errors.Errorf("unknown action '%s'", s.Action)
	}
	if s.From != "" {
		if _, ok := utils.HexStringToAddress(s.From); !ok {
			return errors.Errorf("malformed sender address %s", s.From)
		}
	}
	if s.Value != "" {
		if _, err := parseValue(s.Value); err != nil {
			return err
		}
	}
	return nil
}

// txOptions returns the transaction options the step overrides.
func (s *PlanStep) txOptions() (TxOptions, error) {
	opts := TxOptions{Gas: s.Gas}
	if s.From != "" {
		from, _ := utils.HexStringToAddress(s.From)
		opts.From = &from
	}
	if s.Value != "" {
		value, err := parseValue(s.Value)
		if err != nil {
			return TxOptions{}, err
		}
		opts.Value = value
	}
	return opts, nil
}

// parseValue parses an amount of wei.
func parseValue(s string) (*uint256.Int, error) {
	value, err := uint256.FromDecimal(s)
	if err == nil {
		return value, nil
	}
	if value, err = uint256.FromHex(s); err == nil {
		return value, nil
	}
	return nil, errors.Errorf("malformed value %s", s)
}

// Run executes every step in order.
func (p *Plan) Run(ctx context.Context, deployment *Context) error {
	for i, step := range p.Steps {
		if utils.CheckContextDone(ctx) {
			return ctx.Err()
		}
		if err := p.runStep(ctx, deployment, &step); err != nil {
			return errors.WithMessagef(err, "step %d (%s %s)", i+1, step.Action, step.Contract)
		}
	}
	return nil
}

// runStep executes a single step.
func (p *Plan) runStep(ctx context.Context, deployment *Context, step *PlanStep) error {
	contract, ok := deployment.Contracts.Get(step.Contract)
	if !ok {
		return errors.Errorf("contract %s was not found in the build output", step.Contract)
	}
	opts, err := step.txOptions()
	if err != nil {
		return err
	}
	resolver := deployment.Deployer.ResolveAddress

	if step.Action == DeployAction {
		args, err := ConvertArguments(contract.Abi().Constructor.Inputs, step.Args, resolver)
		if err != nil {
			return err
		}
		_, err = deployment.Deployer.New(ctx, step.Contract, opts, args...)
		return err
	}

	var instance *Instance
	if step.Address != "" {
		address, err := parseAddress(step.Address, resolver)
		if err != nil {
			return err
		}
		instance, err = deployment.Deployer.At(ctx, step.Contract, address.Hex())
		if err != nil {
			return err
		}
	} else if instance, err = deployment.Deployer.Deployed(ctx, step.Contract); err != nil {
		return err
	}

	method, ok := contract.Abi().Methods[step.Method]
	if !ok {
		return errors.Errorf("contract %s has no method %s", step.Contract, step.Method)
	}
	args, err := ConvertArguments(method.Inputs, step.Args, resolver)
	if err != nil {
		return err
	}

	if step.Action == CallAction {
		values, err := instance.Call(ctx, step.Method, args...)
		if err != nil {
			return err
		}
		deployment.Logger.Info(colors.Bold, step.Contract, ".", step.Method, colors.Reset, " returned ", FormatValues(values))
		return nil
	}

	confirmation, err := instance.Transact(ctx, step.Method, opts, args...)
	if err != nil {
		return err
	}
	deployment.Logger.Info(
		colors.Bold, step.Contract, ".", step.Method, colors.Reset, " confirmed in transaction ", confirmation.TxHash.Hex(),
	)
	return nil
}
