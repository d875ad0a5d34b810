// Package tier classifies proposed host actions into risk tiers and
// centralizes the per-tier approval policy. Classification is a pure
// function of the action's immutable fields; the same action always gets
// the same tier.
package tier

import (
	"regexp"

	"github.com/fotescodev/claude-watch/cli/pkg/types"
)

// Tier is an ordered risk level. Higher values are more dangerous.
type Tier int

const (
	// Low covers single-file edits and creates.
	Low Tier = iota
	// Medium covers shell commands without destructive patterns and
	// anything the host could not classify.
	Medium
	// High covers deletes and destructive shell commands. High actions
	// can never be approved from the watch.
	High
)

// String returns the lowercase tier name.
func (t Tier) String() string {
	switch t {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// Gesture is what the quick double-tap shortcut does for a tier.
type Gesture string

const (
	// GestureApprove makes the shortcut approve the action.
	GestureApprove Gesture = "approve"
	// GestureReject makes the shortcut reject the action. This is the
	// safety asymmetry: a reflexive gesture on a dangerous action must
	// never approve it.
	GestureReject Gesture = "reject"
)

// Policy is the per-tier approval rules.
type Policy struct {
	// CanApproveFromWatch reports whether the watch may approve actions
	// of this tier at all.
	CanApproveFromWatch bool
	// Gesture is the action bound to the quick double-tap shortcut.
	Gesture Gesture
	// DisplayHint is the short explanation shown with the action.
	DisplayHint string
}

// policies is the single source of truth for tier behavior. Every policy
// check in the approval path reads this table.
var policies = map[Tier]Policy{
	Low: {
		CanApproveFromWatch: true,
		Gesture:             GestureApprove,
		DisplayHint:         "tap to approve",
	},
	Medium: {
		CanApproveFromWatch: true,
		Gesture:             GestureApprove,
		DisplayHint:         "review before approving",
	},
	High: {
		CanApproveFromWatch: false,
		Gesture:             GestureReject,
		DisplayHint:         "must be approved from host",
	},
}

// PolicyFor returns the approval policy for a tier. Unknown tiers get the
// High policy.
func PolicyFor(t Tier) Policy {
	if p, ok := policies[t]; ok {
		return p
	}
	return policies[High]
}

// Policy returns the tier's approval policy.
func (t Tier) Policy() Policy { return PolicyFor(t) }

// Classifier assigns risk tiers to pending actions. The denylist flags
// shell commands that remove recursively, force-overwrite, write to system
// paths, or escalate privileges.
type Classifier struct {
	denylist []*regexp.Regexp
}

// NewClassifier returns a classifier with the default destructive-command
// denylist.
func NewClassifier() *Classifier {
	return &Classifier{
		denylist: []*regexp.Regexp{
			// Recursive or forced removal.
			regexp.MustCompile(`(?i)\brm\s+(-+\w+\s+)*-+\w*[rf]`),
			regexp.MustCompile(`(?i)\bfind\b.*\s-delete\b`),
			regexp.MustCompile(`(?i)\bshred\b`),
			// Raw device and filesystem writes.
			regexp.MustCompile(`(?i)\bdd\b.*\bof=/dev/`),
			regexp.MustCompile(`(?i)\bmkfs\b`),
			// Writes outside the project sandbox.
			regexp.MustCompile(`(?i)>\s*/(etc|usr|boot|bin|sbin|dev|var)/`),
			regexp.MustCompile(`(?i)\b(cp|mv|tee|install)\b.*\s/(etc|usr|boot|bin|sbin)/`),
			// Privilege escalation.
			regexp.MustCompile(`(?i)\b(sudo|doas)\b`),
			regexp.MustCompile(`(?i)\bsu\s+(-|root\b)`),
			// Recursive permission and ownership sweeps.
			regexp.MustCompile(`(?i)\bchmod\s+-\w*R\b`),
			regexp.MustCompile(`(?i)\bchown\s+-\w*R\b`),
			// History rewrites and forced pushes.
			regexp.MustCompile(`(?i)\bgit\s+push\b.*(\s--force\b|\s-f\b)`),
			regexp.MustCompile(`(?i)\bgit\s+reset\s+--hard\b`),
			regexp.MustCompile(`(?i)\bgit\s+clean\b.*\s-\w*[fdx]`),
			// Pipe-to-shell installers.
			regexp.MustCompile(`(?i)\b(curl|wget)\b.*\|\s*(ba|z|da)?sh\b`),
			// Database drops.
			regexp.MustCompile(`(?i)\bdrop\s+(table|database|schema)\b`),
			// Host power state.
			regexp.MustCompile(`(?i)\b(shutdown|reboot|halt|poweroff)\b`),
		},
	}
}

// Classify returns the risk tier for an action. Deletes are always High.
// Shell commands are High when they match the denylist, Medium otherwise.
// Edits and creates are Low. Anything else defaults to Medium, the
// fail-safe bias for kinds the host could not classify.
func (c *Classifier) Classify(action types.PendingAction) Tier {
	switch action.Kind {
	case types.ActionDelete:
		return High
	case types.ActionShellCommand:
		if c.isDestructive(action.Command) {
			return High
		}
		return Medium
	case types.ActionEdit, types.ActionCreate:
		return Low
	default:
		return Medium
	}
}

func (c *Classifier) isDestructive(command string) bool {
	for _, rule := range c.denylist {
		if rule.MatchString(command) {
			return true
		}
	}
	return false
}
