package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/internal/web3"
	"Merem-Agent/pkg/plugin"
)

const maxBodyBytes = 64 * 1024

// MessageRequest 是提交用户消息的请求体。
type MessageRequest struct {
	UserID   string         `json:"user_id" validate:"required,uuid"`
	RoomID   string         `json:"room_id" validate:"required,uuid"`
	Text     string         `json:"text" validate:"required_without=Action,max=8000"`
	Action   string         `json:"action,omitempty" validate:"max=64"`
	Source   string         `json:"source,omitempty" validate:"max=64"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// EnqueueResponse 是异步接口的响应体。
type EnqueueResponse struct {
	ID string `json:"id"`
}

// ChainsResponse 汇总链快照与失败的链。
type ChainsResponse struct {
	Chains []web3.ChainSnapshot `json:"chains"`
	Errors map[string]string    `json:"errors,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, string(xerrors.CodeInitializationFailure), "agent 未初始化")
		return
	}
	msg, ok := s.decodeMessage(w, r)
	if !ok {
		return
	}
	result, err := s.agent.HandleMessage(r.Context(), msg)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEnqueueMessage(w http.ResponseWriter, r *http.Request) {
	if s.inbox == nil {
		writeError(w, http.StatusServiceUnavailable, string(xerrors.CodeInitializationFailure), "异步队列未启用")
		return
	}
	msg, ok := s.decodeMessage(w, r)
	if !ok {
		return
	}
	id, err := s.inbox.Enqueue(r.Context(), msg)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, EnqueueResponse{ID: id})
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, string(xerrors.CodeInitializationFailure), "agent 未初始化")
		return
	}
	roomID, err := uuid.Parse(chi.URLParam(r, "roomID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, string(xerrors.CodeInvalidArgument), "invalid room id")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, 500)
		}
	}
	items, err := s.agent.ListMemories(r.Context(), roomID, limit)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if items == nil {
		items = []plugin.Memory{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleListActions(w http.ResponseWriter, _ *http.Request) {
	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, string(xerrors.CodeInitializationFailure), "agent 未初始化")
		return
	}
	writeJSON(w, http.StatusOK, s.agent.Actions())
}

func (s *Server) handleListChains(w http.ResponseWriter, r *http.Request) {
	if s.chains == nil {
		writeError(w, http.StatusServiceUnavailable, string(xerrors.CodeInitializationFailure), "未配置链")
		return
	}
	snaps, errs := s.chains.Snapshots(r.Context())
	resp := ChainsResponse{Chains: snaps}
	if resp.Chains == nil {
		resp.Chains = []web3.ChainSnapshot{}
	}
	if len(errs) > 0 {
		resp.Errors = make(map[string]string, len(errs))
		for name, err := range errs {
			resp.Errors[name] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decodeMessage(w http.ResponseWriter, r *http.Request) (plugin.Memory, bool) {
	var req MessageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(xerrors.CodeInvalidArgument), "请求体解析失败")
		return plugin.Memory{}, false
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		msg := err.Error()
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msg = verrs[0].Field() + " failed " + verrs[0].Tag()
		}
		writeError(w, http.StatusBadRequest, string(xerrors.CodeInvalidArgument), msg)
		return plugin.Memory{}, false
	}
	source := req.Source
	if source == "" {
		source = "api"
	}
	return plugin.Memory{
		UserID: uuid.MustParse(req.UserID),
		RoomID: uuid.MustParse(req.RoomID),
		Content: plugin.Content{
			Text:     req.Text,
			Action:   req.Action,
			Source:   source,
			Metadata: req.Metadata,
		},
	}, true
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	code := xerrors.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.log.Error("请求处理失败", "code", string(code), "error", err)
	}
	writeError(w, status, string(code), err.Error())
}

func statusFor(code xerrors.Code) int {
	switch code {
	case xerrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case xerrors.CodeNotFound:
		return http.StatusNotFound
	case xerrors.CodeConflict:
		return http.StatusConflict
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case xerrors.CodeInitializationFailure:
		return http.StatusServiceUnavailable
	case xerrors.CodeModelFailure, xerrors.CodeUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
