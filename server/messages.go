package server

import (
	"time"

	"github.com/chazu/quill/savestore"
	"github.com/chazu/quill/vm"
)

// Procedure names of the story service.
const (
	StoryServiceName = "quill.v1.StoryService"

	StartSessionProcedure = "/" + StoryServiceName + "/StartSession"
	ContinueProcedure     = "/" + StoryServiceName + "/Continue"
	ChooseProcedure       = "/" + StoryServiceName + "/Choose"
	SaveProcedure         = "/" + StoryServiceName + "/Save"
	LoadProcedure         = "/" + StoryServiceName + "/Load"
	ListSavesProcedure    = "/" + StoryServiceName + "/ListSaves"
	EndSessionProcedure   = "/" + StoryServiceName + "/EndSession"
)

type StartSessionRequest struct {
	// Seed fixes the session's random seed; nil uses the server default.
	Seed *int `json:"seed,omitempty"`
}

type StartSessionResponse struct {
	SessionID string `json:"session_id"`
	Seed      int    `json:"seed"`
}

type ContinueRequest struct {
	SessionID string `json:"session_id"`
	// All keeps continuing until the story stops for a choice.
	All bool `json:"all,omitempty"`
}

type LineMessage struct {
	Text string   `json:"text"`
	Tags []string `json:"tags,omitempty"`
}

type ChoiceMessage struct {
	Index  int      `json:"index"`
	Text   string   `json:"text"`
	Tags   []string `json:"tags,omitempty"`
	Handle string   `json:"handle"`
}

type ContinueResponse struct {
	Lines       []LineMessage   `json:"lines"`
	Choices     []ChoiceMessage `json:"choices,omitempty"`
	Warnings    []string        `json:"warnings,omitempty"`
	Steps       int             `json:"steps"`
	Ended       bool            `json:"ended"`
	CanContinue bool            `json:"can_continue"`
}

type ChooseRequest struct {
	SessionID string `json:"session_id"`
	Index     int    `json:"index"`
	// Handle selects the choice by handle instead of index when set.
	Handle string `json:"handle,omitempty"`
}

type ChooseResponse struct {
	TurnIndex int `json:"turn_index"`
}

type SaveRequest struct {
	SessionID string `json:"session_id"`
	Slot      string `json:"slot"`
}

type SlotMessage struct {
	Name     string    `json:"name"`
	Revision string    `json:"revision"`
	Turn     int       `json:"turn"`
	SavedAt  time.Time `json:"saved_at"`
	Size     int       `json:"size"`
}

type SaveResponse struct {
	Slot SlotMessage `json:"slot"`
}

type LoadRequest struct {
	SessionID string `json:"session_id"`
	Slot      string `json:"slot"`
}

type LoadResponse struct {
	Slot    SlotMessage     `json:"slot"`
	Choices []ChoiceMessage `json:"choices,omitempty"`
}

type ListSavesRequest struct{}

type ListSavesResponse struct {
	Slots []SlotMessage `json:"slots"`
}

type EndSessionRequest struct {
	SessionID string `json:"session_id"`
}

type EndSessionResponse struct{}

func choiceMessages(choices []vm.Choice) []ChoiceMessage {
	out := make([]ChoiceMessage, 0, len(choices))
	for i := range choices {
		c := &choices[i]
		out = append(out, ChoiceMessage{Index: c.Index, Text: c.Text, Tags: c.Tags, Handle: c.Handle()})
	}
	return out
}

func slotMessage(s savestore.Slot) SlotMessage {
	return SlotMessage{Name: s.Name, Revision: s.Revision, Turn: s.Turn, SavedAt: s.SavedAt, Size: s.Size}
}

func continueResponse(t *vm.Turn, canContinue bool) *ContinueResponse {
	resp := &ContinueResponse{
		Lines:       []LineMessage{},
		Choices:     choiceMessages(t.Choices),
		Warnings:    t.Warnings,
		Steps:       t.Steps,
		Ended:       t.Ended,
		CanContinue: canContinue,
	}
	for _, l := range t.Lines() {
		resp.Lines = append(resp.Lines, LineMessage{Text: l.Text, Tags: l.Tags})
	}
	return resp
}
