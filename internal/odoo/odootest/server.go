// Package odootest provides an in-memory Odoo JSON-RPC endpoint for tests.
package odootest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"
)

// Record is one remote row. Relations are written as []any{id, "label"}.
type Record map[string]any

// Server answers common.login and object.execute_kw (search_read and read)
// from records held in memory.
type Server struct {
	*httptest.Server

	DB     string
	Login  string
	Secret string
	UID    int64

	mu          sync.Mutex
	records     map[string][]Record
	failContent map[int64]string
	rejectLogin bool
	logins      int
	calls       map[string]int
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	s := &Server{
		DB:          "recruit",
		Login:       "recruiter@example.com",
		Secret:      "api-key",
		UID:         2,
		records:     make(map[string][]Record),
		failContent: make(map[int64]string),
		calls:       make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	s.SetRecords("res.users", Record{"id": s.UID, "name": "Recruiter", "login": s.Login, "company_ids": []any{}})
	return s
}

// SetRecords replaces every record of model.
func (s *Server) SetRecords(model string, records ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[model] = append([]Record(nil), records...)
}

// SetUserCompanies sets company_ids of the authenticated user.
func (s *Server) SetUserCompanies(ids ...int64) {
	list := make([]any, len(ids))
	for i, id := range ids {
		list[i] = id
	}
	s.SetRecords("res.users", Record{"id": s.UID, "name": "Recruiter", "login": s.Login, "company_ids": list})
}

// FailContent makes reads of the given attachment ids return a server error.
func (s *Server) FailContent(ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.failContent[id] = "attachment storage unavailable"
	}
}

// RejectLogin makes every login return false.
func (s *Server) RejectLogin(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectLogin = reject
}

// Calls returns how many times model.method was executed.
func (s *Server) Calls(model, method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[model+"."+method]
}

// Logins returns how many login attempts were made.
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

type request struct {
	ID     any `json:"id"`
	Params struct {
		Service string `json:"service"`
		Method  string `json:"method"`
		Args    []any  `json:"args"`
	} `json:"params"`
}

type faultError struct {
	name    string
	message string
}

func (e *faultError) Error() string { return e.message }

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/jsonrpc" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.dispatch(req.Params.Service, req.Params.Method, req.Params.Args)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		name := "odoo.exceptions.UserError"
		if fe, ok := err.(*faultError); ok {
			name = fe.name
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]any{
				"code":    200,
				"message": "Odoo Server Error",
				"data":    map[string]any{"name": name, "message": err.Error()},
			},
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

func (s *Server) dispatch(service, method string, args []any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case service == "common" && method == "login":
		s.logins++
		if len(args) != 3 || s.rejectLogin {
			return false, nil
		}
		if args[0] != s.DB || args[1] != s.Login || args[2] != s.Secret {
			return false, nil
		}
		return s.UID, nil
	case service == "object" && method == "execute_kw":
		return s.execute(args)
	}
	return nil, &faultError{name: "werkzeug.exceptions.NotFound", message: fmt.Sprintf("unknown method %s.%s", service, method)}
}

func (s *Server) execute(args []any) (any, error) {
	if len(args) < 5 {
		return nil, &faultError{name: "builtins.TypeError", message: "execute_kw expects at least 5 arguments"}
	}
	if args[0] != s.DB || toInt(args[1]) != s.UID || args[2] != s.Secret {
		return nil, &faultError{name: "odoo.exceptions.AccessDenied", message: "Access Denied"}
	}
	model, _ := args[3].(string)
	method, _ := args[4].(string)
	var (
		positional []any
		kwargs     map[string]any
	)
	if len(args) > 5 {
		positional, _ = args[5].([]any)
	}
	if len(args) > 6 {
		kwargs, _ = args[6].(map[string]any)
	}
	s.calls[model+"."+method]++

	fields := stringList(kwargs["fields"])
	switch method {
	case "search_read":
		var domain []any
		if len(positional) > 0 {
			domain, _ = positional[0].([]any)
		}
		out := []Record{}
		for _, rec := range s.records[model] {
			if matches(rec, domain) {
				out = append(out, project(rec, fields))
			}
		}
		return out, nil
	case "read":
		var ids []any
		if len(positional) > 0 {
			ids, _ = positional[0].([]any)
		}
		out := []Record{}
		for _, rawID := range ids {
			id := toInt(rawID)
			if model == "ir.attachment" {
				if msg, ok := s.failContent[id]; ok {
					return nil, &faultError{name: "odoo.exceptions.MissingError", message: msg}
				}
			}
			for _, rec := range s.records[model] {
				if toInt(rec["id"]) == id {
					out = append(out, project(rec, fields))
				}
			}
		}
		return out, nil
	}
	return nil, &faultError{name: "builtins.AttributeError", message: fmt.Sprintf("method %s not supported", method)}
}

func matches(rec Record, domain []any) bool {
	for _, term := range domain {
		cond, ok := term.([]any)
		if !ok || len(cond) != 3 {
			continue
		}
		field, _ := cond[0].(string)
		op, _ := cond[1].(string)
		value := rec[field]
		switch op {
		case "=":
			if !equal(value, cond[2]) {
				return false
			}
		case "in":
			list, _ := cond[2].([]any)
			found := false
			for _, v := range list {
				if equal(value, v) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equal(field, want any) bool {
	if s, ok := want.(string); ok {
		got, ok := field.(string)
		return ok && got == s
	}
	return toInt(field) != 0 && toInt(field) == toInt(want)
}

func project(rec Record, fields []string) Record {
	out := Record{"id": rec["id"]}
	for _, f := range fields {
		if v, ok := rec[f]; ok {
			out[f] = v
		} else {
			out[f] = false
		}
	}
	return out
}

// toInt reads a numeric id, including the id part of a many2one pair.
func toInt(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case []any:
		if len(n) > 0 {
			return toInt(n[0])
		}
	}
	return 0
}

func stringList(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
