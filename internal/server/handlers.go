package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rxtech-lab/argo-backtest/internal/service"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/version"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

type strategyTypeResponse struct {
	Type        string          `json:"type"`
	Label       string          `json:"label"`
	Description string          `json:"description"`
	Registered  bool            `json:"registered"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// Params and engine configs may be sent as a JSON object or as a YAML/JSON string.
type strategyPayload struct {
	Name        string          `json:"name"`
	Type        string          `json:"strategy_type"`
	Params      json.RawMessage `json:"params"`
	Description string          `json:"description"`
}

type strategyUpdatePayload struct {
	Name        *string         `json:"name"`
	Params      json.RawMessage `json:"params"`
	Description *string         `json:"description"`
}

type barPayload struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type backtestPayload struct {
	StrategyID   string          `json:"strategy_id"`
	Symbol       string          `json:"symbol"`
	EngineConfig json.RawMessage `json:"engine_config"`
	Bars         []barPayload    `json:"bars"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.GetVersion(),
	})
}

func (s *Server) handleEngineSchema(w http.ResponseWriter, _ *http.Request) {
	schema, err := s.schema()
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, "failed to generate engine schema", err))

		return
	}

	s.writeJSON(w, http.StatusOK, json.RawMessage(schema))
}

func (s *Server) handleStrategyTypes(w http.ResponseWriter, _ *http.Request) {
	descriptors := s.service.StrategyTypes()
	response := make([]strategyTypeResponse, len(descriptors))

	for i, descriptor := range descriptors {
		response[i] = strategyTypeResponse{
			Type:        descriptor.Type,
			Label:       descriptor.Label,
			Description: descriptor.Description,
			Registered:  descriptor.Registered(),
		}

		if descriptor.Schema != "" {
			response[i].Schema = json.RawMessage(descriptor.Schema)
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleListStrategies(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.ListStrategies())
}

func (s *Server) handleCreateStrategy(w http.ResponseWriter, r *http.Request) {
	var payload strategyPayload
	if err := decode(r, &payload); err != nil {
		s.writeError(w, err)

		return
	}

	params, err := documentText(payload.Params)
	if err != nil {
		s.writeError(w, err)

		return
	}

	record, err := s.service.CreateStrategy(service.CreateStrategyInput{
		Name:        payload.Name,
		Type:        payload.Type,
		Params:      params,
		Description: payload.Description,
	})
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.GetStrategy(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleUpdateStrategy(w http.ResponseWriter, r *http.Request) {
	var payload strategyUpdatePayload
	if err := decode(r, &payload); err != nil {
		s.writeError(w, err)

		return
	}

	input := service.UpdateStrategyInput{
		Name:        payload.Name,
		Description: payload.Description,
	}

	if !isNull(payload.Params) {
		params, err := documentText(payload.Params)
		if err != nil {
			s.writeError(w, err)

			return
		}

		input.Params = &params
	}

	record, err := s.service.UpdateStrategy(mux.Vars(r)["id"], input)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleDeleteStrategy(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteStrategy(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBacktests(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.ListBacktests())
}

// handleRunBacktest runs synchronously. A failed run still answers with the
// stored record's id in the error body.
func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var payload backtestPayload
	if err := decode(r, &payload); err != nil {
		s.writeError(w, err)

		return
	}

	engineConfig, err := documentText(payload.EngineConfig)
	if err != nil {
		s.writeError(w, err)

		return
	}

	bars := make([]types.Bar, len(payload.Bars))

	for i, bar := range payload.Bars {
		date, err := parseDate(bar.Date)
		if err != nil {
			s.writeError(w, errors.Wrapf(errors.ErrCodeInvalidBar, err, "bar %d has an invalid date", i))

			return
		}

		bars[i] = types.Bar{
			Symbol: bar.Symbol,
			Date:   date,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		}
	}

	record, err := s.service.RunBacktest(r.Context(), service.BacktestRequest{
		StrategyID:   payload.StrategyID,
		Symbol:       payload.Symbol,
		Bars:         bars,
		EngineConfig: engineConfig,
	})
	if err != nil {
		if record.ID != "" {
			w.Header().Set("Location", "/api/backtests/"+record.ID)
		}

		s.writeError(w, err)

		return
	}

	w.Header().Set("Location", "/api/backtests/"+record.ID)
	s.writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.GetBacktest(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

func decode(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(target); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid request body", err)
	}

	return nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)

	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// documentText turns a JSON string into its content and any other JSON
// value into its text, which the YAML parsers downstream also accept.
func documentText(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}

	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] != '"' {
		return string(trimmed), nil
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidParameter, "invalid document string", err)
	}

	return text, nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)

	date, err := time.Parse(time.DateOnly, value)
	if err == nil {
		return date, nil
	}

	return time.Parse(time.RFC3339, value)
}
