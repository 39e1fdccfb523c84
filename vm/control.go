package vm

import (
	"fmt"
	"sort"
)

// ControlCommand is a zero-operand instruction embedded in container
// content. Commands are grouped into ranges by category.
type ControlCommand byte

const (
	// ========================================================================
	// Evaluation mode (0x00-0x0F)
	// ========================================================================

	CmdEvalStart         ControlCommand = 0x00 // Enter expression evaluation
	CmdEvalOutput        ControlCommand = 0x01 // Pop value, write it to output
	CmdEvalEnd           ControlCommand = 0x02 // Leave expression evaluation
	CmdDuplicate         ControlCommand = 0x03 // Duplicate top of eval stack
	CmdPopEvaluatedValue ControlCommand = 0x04 // Discard top of eval stack
	CmdNoOp              ControlCommand = 0x05 // No operation

	// ========================================================================
	// Frames (0x10-0x1F)
	// ========================================================================

	CmdPopFunction ControlCommand = 0x10 // Return from a function frame
	CmdPopTunnel   ControlCommand = 0x11 // Return from a tunnel frame

	// ========================================================================
	// Captures (0x20-0x2F)
	// ========================================================================

	CmdBeginString ControlCommand = 0x20 // Start capturing output as a string
	CmdEndString   ControlCommand = 0x21 // Finish string capture, push result
	CmdBeginTag    ControlCommand = 0x22 // Start a dynamic tag
	CmdEndTag      ControlCommand = 0x23 // Finish a dynamic tag

	// ========================================================================
	// Counting (0x30-0x3F)
	// ========================================================================

	CmdChoiceCount ControlCommand = 0x30 // Push number of generated choices
	CmdTurns       ControlCommand = 0x31 // Pop target, push turns since visited
	CmdReadCount   ControlCommand = 0x32 // Pop target, push visit count
	CmdVisitIndex  ControlCommand = 0x33 // Push visits of current container - 1
	CmdTurnIndex   ControlCommand = 0x34 // Push current turn + 1

	// ========================================================================
	// Randomness (0x40-0x4F)
	// ========================================================================

	CmdRandom               ControlCommand = 0x40 // Pop max, min; push random int
	CmdSeedRandom           ControlCommand = 0x41 // Pop seed, reseed
	CmdSequenceShuffleIndex ControlCommand = 0x42 // Pop count, seq count; push shuffled index

	// ========================================================================
	// Flow (0x50-0x5F)
	// ========================================================================

	CmdStartThread ControlCommand = 0x50 // Fork a thread at the next divert
	CmdDone        ControlCommand = 0x51 // Finish the current thread or flow
	CmdEnd         ControlCommand = 0x52 // End the story

	// ========================================================================
	// Lists (0x60-0x6F)
	// ========================================================================

	CmdListFromInt ControlCommand = 0x60 // Pop int, list name; push list
	CmdListRange   ControlCommand = 0x61 // Pop max, min, list; push sub-range
	CmdListRandom  ControlCommand = 0x62 // Pop list, push one random item
)

// CommandInfo provides metadata about each control command.
type CommandInfo struct {
	Name      string // Human-readable name
	Token     string // Wire-format token
	StackPop  int    // Values popped from the eval stack (-1 = variable)
	StackPush int    // Values pushed to the eval stack
}

// commandInfoTable maps commands to their metadata.
var commandInfoTable = map[ControlCommand]CommandInfo{
	// Evaluation mode
	CmdEvalStart:         {"EVAL_START", "ev", 0, 0},
	CmdEvalOutput:        {"EVAL_OUTPUT", "out", 1, 0},
	CmdEvalEnd:           {"EVAL_END", "/ev", 0, 0},
	CmdDuplicate:         {"DUPLICATE", "du", 1, 2},
	CmdPopEvaluatedValue: {"POP", "pop", 1, 0},
	CmdNoOp:              {"NOP", "nop", 0, 0},

	// Frames
	CmdPopFunction: {"POP_FUNCTION", "~ret", 0, 0},
	CmdPopTunnel:   {"POP_TUNNEL", "->->", -1, 0},

	// Captures
	CmdBeginString: {"BEGIN_STRING", "str", 0, 0},
	CmdEndString:   {"END_STRING", "/str", 0, 1},
	CmdBeginTag:    {"BEGIN_TAG", "#", 0, 0},
	CmdEndTag:      {"END_TAG", "/#", 0, -1},

	// Counting
	CmdChoiceCount: {"CHOICE_COUNT", "choiceCnt", 0, 1},
	CmdTurns:       {"TURNS_SINCE", "turns", 1, 1},
	CmdReadCount:   {"READ_COUNT", "readc", 1, 1},
	CmdVisitIndex:  {"VISIT_INDEX", "visit", 0, 1},
	CmdTurnIndex:   {"TURN_INDEX", "turn", 0, 1},

	// Randomness
	CmdRandom:               {"RANDOM", "rnd", 2, 1},
	CmdSeedRandom:           {"SEED_RANDOM", "srnd", 1, 1},
	CmdSequenceShuffleIndex: {"SEQ_SHUFFLE_INDEX", "seq", 2, 1},

	// Flow
	CmdStartThread: {"START_THREAD", "thread", 0, 0},
	CmdDone:        {"DONE", "done", 0, 0},
	CmdEnd:         {"END", "end", 0, 0},

	// Lists
	CmdListFromInt: {"LIST_FROM_INT", "listInt", 2, 1},
	CmdListRange:   {"LIST_RANGE", "range", 3, 1},
	CmdListRandom:  {"LIST_RANDOM", "lrnd", 1, 1},
}

// commandByToken is the reverse of the Token column.
var commandByToken = func() map[string]ControlCommand {
	m := make(map[string]ControlCommand, len(commandInfoTable))
	for cmd, info := range commandInfoTable {
		m[info.Token] = cmd
	}
	return m
}()

// GetCommandInfo returns metadata for a command.
// Returns a zero CommandInfo with name "UNKNOWN" if the command is not recognized.
func GetCommandInfo(c ControlCommand) CommandInfo {
	if info, ok := commandInfoTable[c]; ok {
		return info
	}
	return CommandInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(c))}
}

// CommandForToken maps a wire token such as "ev" to its command.
func CommandForToken(token string) (ControlCommand, bool) {
	c, ok := commandByToken[token]
	return c, ok
}

func (c ControlCommand) node() {}

// Kind implements Node.
func (c ControlCommand) Kind() NodeKind { return KindControlCommand }

// String returns the human-readable name of a command.
func (c ControlCommand) String() string {
	return GetCommandInfo(c).Name
}

// Token returns the wire-format token of a command.
func (c ControlCommand) Token() string {
	return GetCommandInfo(c).Token
}

// AllCommands returns every defined command in ascending order.
func AllCommands() []ControlCommand {
	cmds := make([]ControlCommand, 0, len(commandInfoTable))
	for c := range commandInfoTable {
		cmds = append(cmds, c)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i] < cmds[j] })
	return cmds
}

// CommandCount returns the number of defined commands.
func CommandCount() int {
	return len(commandInfoTable)
}
