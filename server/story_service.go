package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/chazu/quill/savestore"
	"github.com/chazu/quill/vm"
	"github.com/chazu/quill/vm/persist"
)

// StoryService implements the StoryService Connect handlers.
type StoryService struct {
	story    *vm.Story
	sessions *SessionStore
	saves    *savestore.Store
}

// NewStoryService creates a StoryService. saves may be nil, which
// disables the save and load procedures.
func NewStoryService(story *vm.Story, sessions *SessionStore, saves *savestore.Store) *StoryService {
	return &StoryService{story: story, sessions: sessions, saves: saves}
}

// Handler returns the HTTP handler serving every procedure of the service.
func (s *StoryService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(metricsInterceptor()),
	}, opts...)

	mux := http.NewServeMux()
	mux.Handle(StartSessionProcedure, connect.NewUnaryHandler(StartSessionProcedure, s.StartSession, opts...))
	mux.Handle(ContinueProcedure, connect.NewUnaryHandler(ContinueProcedure, s.Continue, opts...))
	mux.Handle(ChooseProcedure, connect.NewUnaryHandler(ChooseProcedure, s.Choose, opts...))
	mux.Handle(SaveProcedure, connect.NewUnaryHandler(SaveProcedure, s.Save, opts...))
	mux.Handle(LoadProcedure, connect.NewUnaryHandler(LoadProcedure, s.Load, opts...))
	mux.Handle(ListSavesProcedure, connect.NewUnaryHandler(ListSavesProcedure, s.ListSaves, opts...))
	mux.Handle(EndSessionProcedure, connect.NewUnaryHandler(EndSessionProcedure, s.EndSession, opts...))
	return "/" + StoryServiceName + "/", mux
}

// StartSession starts a new session at the top of the story.
func (s *StoryService) StartSession(
	ctx context.Context,
	req *connect.Request[StartSessionRequest],
) (*connect.Response[StartSessionResponse], error) {
	var extra []vm.Option
	if req.Msg.Seed != nil {
		extra = append(extra, vm.WithSeed(*req.Msg.Seed))
	}
	id, worker, err := s.sessions.Create(extra...)
	if err != nil {
		return nil, connectError(err)
	}
	seed, err := worker.Do(ctx, func(sess *vm.Session) (any, error) {
		return sess.Seed(), nil
	})
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&StartSessionResponse{SessionID: id, Seed: seed.(int)}), nil
}

// Continue runs the session until it stops for a choice.
func (s *StoryService) Continue(
	ctx context.Context,
	req *connect.Request[ContinueRequest],
) (*connect.Response[ContinueResponse], error) {
	worker, err := s.lookup(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	all := req.Msg.All
	result, err := worker.Do(ctx, func(sess *vm.Session) (any, error) {
		var turn *vm.Turn
		var err error
		if all {
			turn, err = sess.ContinueAll()
		} else {
			turn, err = sess.Continue()
		}
		if err != nil {
			return nil, err
		}
		return continueResponse(turn, sess.CanContinue()), nil
	})
	if err != nil {
		return nil, connectError(err)
	}
	resp := result.(*ContinueResponse)
	recordTurn(resp.Steps)
	return connect.NewResponse(resp), nil
}

// Choose selects one of the choices offered by the last turn.
func (s *StoryService) Choose(
	ctx context.Context,
	req *connect.Request[ChooseRequest],
) (*connect.Response[ChooseResponse], error) {
	worker, err := s.lookup(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	result, err := worker.Do(ctx, func(sess *vm.Session) (any, error) {
		var err error
		if req.Msg.Handle != "" {
			err = sess.ChooseHandle(req.Msg.Handle)
		} else {
			err = sess.Choose(req.Msg.Index)
		}
		if err != nil {
			return nil, err
		}
		return sess.TurnIndex(), nil
	})
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ChooseResponse{TurnIndex: result.(int)}), nil
}

// Save stores the session in a named slot.
func (s *StoryService) Save(
	ctx context.Context,
	req *connect.Request[SaveRequest],
) (*connect.Response[SaveResponse], error) {
	if err := s.checkSaves(req.Msg.Slot); err != nil {
		return nil, err
	}
	worker, err := s.lookup(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	result, err := worker.Do(ctx, func(sess *vm.Session) (any, error) {
		return s.saves.SaveSession(ctx, req.Msg.Slot, sess)
	})
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&SaveResponse{Slot: slotMessage(result.(savestore.Slot))}), nil
}

// Load restores a named slot into the session.
func (s *StoryService) Load(
	ctx context.Context,
	req *connect.Request[LoadRequest],
) (*connect.Response[LoadResponse], error) {
	if err := s.checkSaves(req.Msg.Slot); err != nil {
		return nil, err
	}
	worker, err := s.lookup(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	result, err := worker.Do(ctx, func(sess *vm.Session) (any, error) {
		slot, err := s.saves.LoadSession(ctx, req.Msg.Slot, sess)
		if err != nil {
			return nil, err
		}
		return &LoadResponse{Slot: slotMessage(slot), Choices: choiceMessages(sess.Choices())}, nil
	})
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(result.(*LoadResponse)), nil
}

// ListSaves lists the slots saved for the served story.
func (s *StoryService) ListSaves(
	ctx context.Context,
	req *connect.Request[ListSavesRequest],
) (*connect.Response[ListSavesResponse], error) {
	if s.saves == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("saves are disabled"))
	}
	slots, err := s.saves.List(ctx, s.story.Fingerprint())
	if err != nil {
		return nil, connectError(err)
	}
	resp := &ListSavesResponse{Slots: []SlotMessage{}}
	for _, slot := range slots {
		resp.Slots = append(resp.Slots, slotMessage(slot))
	}
	return connect.NewResponse(resp), nil
}

// EndSession stops a session and releases it.
func (s *StoryService) EndSession(
	ctx context.Context,
	req *connect.Request[EndSessionRequest],
) (*connect.Response[EndSessionResponse], error) {
	if req.Msg.SessionID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session_id is required"))
	}
	if !s.sessions.Destroy(req.Msg.SessionID) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", req.Msg.SessionID))
	}
	return connect.NewResponse(&EndSessionResponse{}), nil
}

func (s *StoryService) lookup(id string) (*SessionWorker, error) {
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session_id is required"))
	}
	worker, ok := s.sessions.Get(id)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
	}
	return worker, nil
}

func (s *StoryService) checkSaves(slot string) error {
	if s.saves == nil {
		return connect.NewError(connect.CodeUnimplemented, errors.New("saves are disabled"))
	}
	if slot == "" {
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("slot is required"))
	}
	return nil
}

// connectError maps engine and store errors to Connect codes.
func connectError(err error) error {
	var ce *connect.Error
	if errors.As(err, &ce) {
		return err
	}
	code := connect.CodeInternal
	switch {
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	case errors.Is(err, vm.ErrSessionFaulted):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, vm.ErrChoiceOutOfRange), errors.Is(err, vm.ErrUnknownChoice):
		code = connect.CodeInvalidArgument
	case errors.Is(err, savestore.ErrSlotNotFound), errors.Is(err, ErrWorkerStopped):
		code = connect.CodeNotFound
	case errors.Is(err, persist.ErrCorrupt), errors.Is(err, persist.ErrUnsupportedFormat):
		code = connect.CodeDataLoss
	case errors.Is(err, vm.ErrStepBudgetExceeded):
		code = connect.CodeResourceExhausted
	case errors.Is(err, vm.ErrCannotContinue),
		errors.Is(err, vm.ErrStoryEnded),
		errors.Is(err, vm.ErrSnapshotMismatch):
		code = connect.CodeFailedPrecondition
	}
	if code == connect.CodeInternal {
		log.Errorf("internal error: %s", err.Error())
	}
	return connect.NewError(code, err)
}

func metricsInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			code := "ok"
			if err != nil {
				code = connect.CodeOf(err).String()
			}
			recordRequest(req.Spec().Procedure, code, time.Since(start))
			return resp, err
		}
	}
}
