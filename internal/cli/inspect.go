package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/causaloid/internal/causaloid"
	"github.com/roach88/causaloid/internal/compiler"
	"github.com/roach88/causaloid/internal/effect"
)

// CausaloidInfo describes one compiled causaloid.
type CausaloidInfo struct {
	ID          uint64   `json:"id"`
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	Policy      string   `json:"policy,omitempty"`
	Members     []uint64 `json:"members,omitempty"`
	Order       []uint64 `json:"order,omitempty"` // graph evaluation order
}

// StateInfo describes one declared causal state.
type StateInfo struct {
	Name      string `json:"name"`
	ID        uint64 `json:"id"`
	Version   uint32 `json:"version"`
	Causaloid string `json:"causaloid"`
	Action    string `json:"action"`
	Data      string `json:"data"`
}

// InspectResult is the json payload of inspect.
type InspectResult struct {
	Causaloids []CausaloidInfo `json:"causaloids"`
	States     []StateInfo     `json:"states"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <model>",
		Short: "Show the compiled causaloids and states of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			model, err := loadModel(args[0])
			if err != nil {
				return reportError(f, ExitCommandError, err)
			}
			res := inspect(model)
			return f.Emit(res.text(), res)
		},
	}
}

func inspect(model *compiler.Model) InspectResult {
	var res InspectResult
	for _, id := range model.Arena.IDs() {
		c, _ := model.Arena.Get(id)
		info := CausaloidInfo{
			ID:          c.ID(),
			Kind:        c.Kind().String(),
			Description: c.Description(),
		}
		if c.Kind() != causaloid.KindSingleton {
			info.Policy = c.Policy().String()
			info.Members = c.Members()
		}
		if g := c.Graph(); g != nil {
			info.Order = g.Order()
		}
		res.Causaloids = append(res.Causaloids, info)
	}
	for _, s := range model.States {
		res.States = append(res.States, StateInfo{
			Name:      s.Name,
			ID:        s.ID,
			Version:   s.Version,
			Causaloid: s.Causaloid,
			Action:    s.Action,
			Data:      effect.Format(s.Data),
		})
	}
	return res
}

func (r InspectResult) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Causaloids (%d):\n", len(r.Causaloids))
	for _, c := range r.Causaloids {
		fmt.Fprintf(&b, "  %d %s %q", c.ID, c.Kind, c.Description)
		if c.Policy != "" {
			fmt.Fprintf(&b, " policy=%s members=%v", c.Policy, c.Members)
		}
		if len(c.Order) > 0 {
			fmt.Fprintf(&b, " order=%v", c.Order)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "States (%d):\n", len(r.States))
	for _, s := range r.States {
		fmt.Fprintf(&b, "  %d %s v%d causaloid=%s action=%s data=%s\n",
			s.ID, s.Name, s.Version, s.Causaloid, s.Action, s.Data)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
