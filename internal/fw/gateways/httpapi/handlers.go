package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/haukened/rr-fwmgr/internal/fw/domain"
	"github.com/haukened/rr-fwmgr/internal/fw/services/dhcp"
	"github.com/haukened/rr-fwmgr/internal/fw/services/groups"
)

// Block metric results.
const (
	blockChanged = "changed"
	blockNoop    = "noop"
	blockError   = "error"
)

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Message   string    `json:"message"`
}

type membershipRequest struct {
	Groups []string `json:"groups"`
}

type validateIPRequest struct {
	IP        string `json:"ip"`
	CurrentIP string `json:"currentIP"`
}

type validateIPResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type staticResponse struct {
	Mapping domain.StaticMapping `json:"mapping"`
	Created bool                 `json:"created"`
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, healthResponse{Status: "ok", Timestamp: a.clock.Now().UTC().Format(time.RFC3339)})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, a.log(r), err)
		return
	}
	token, exp, err := a.auth.Login(req.Password)
	switch {
	case errors.Is(err, ErrPasswordRequired):
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrInvalidPassword):
		a.log(r).Warn(map[string]any{"remote": clientIP(r)}, "Failed login attempt")
		writeMessage(w, http.StatusUnauthorized, err.Error())
		return
	case err != nil:
		writeError(w, a.log(r), err)
		return
	}
	writeData(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, Message: "Login successful"})
}

func (a *API) handleConnected(w http.ResponseWriter, r *http.Request) {
	list, err := a.clients.Connected(r.Context())
	if err != nil {
		writeError(w, a.log(r), err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func (a *API) handleBlockedClients(w http.ResponseWriter, r *http.Request) {
	list, err := a.clients.Blocked(r.Context())
	if err != nil {
		writeError(w, a.log(r), err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func (a *API) handleBlockedItems(w http.ResponseWriter, r *http.Request) {
	items, err := a.clients.BlockedItems(r.Context())
	if err != nil {
		writeError(w, a.log(r), err)
		return
	}
	if a.metrics != nil {
		a.metrics.BlockedEntries.Set(float64(len(items)))
	}
	writeData(w, http.StatusOK, items)
}

func (a *API) handleBlock(w http.ResponseWriter, r *http.Request) {
	res, err := a.blocklist.Block(r.Context(), mux.Vars(r)["identifier"])
	a.blockResult(w, r, "block", res, err)
}

func (a *API) handleUnblock(w http.ResponseWriter, r *http.Request) {
	res, err := a.blocklist.Unblock(r.Context(), mux.Vars(r)["identifier"])
	a.blockResult(w, r, "unblock", res, err)
}

func (a *API) handleBlockDevice(w http.ResponseWriter, r *http.Request) {
	res, err := a.blocklist.BlockDevice(r.Context(), mux.Vars(r)["mac"])
	a.blockResult(w, r, "block", res, err)
}

func (a *API) handleUnblockDevice(w http.ResponseWriter, r *http.Request) {
	res, err := a.blocklist.UnblockDevice(r.Context(), mux.Vars(r)["mac"])
	a.blockResult(w, r, "unblock", res, err)
}

func (a *API) handleBlockGroup(w http.ResponseWriter, r *http.Request) {
	res, err := a.groups.Block(r.Context(), mux.Vars(r)["name"])
	a.blockResult(w, r, "block", res, err)
}

func (a *API) handleUnblockGroup(w http.ResponseWriter, r *http.Request) {
	res, err := a.groups.Unblock(r.Context(), mux.Vars(r)["name"])
	a.blockResult(w, r, "unblock", res, err)
}

// blockResult records the outcome of a block or unblock and writes the response.
func (a *API) blockResult(w http.ResponseWriter, r *http.Request, op string, res domain.BlockResult, err error) {
	if err != nil {
		a.metrics.ObserveBlock(op, blockError)
		writeError(w, a.log(r), err)
		return
	}
	if res.Changed {
		a.metrics.ObserveBlock(op, blockChanged)
	} else {
		a.metrics.ObserveBlock(op, blockNoop)
	}
	writeData(w, http.StatusOK, res)
}

func (a *API) handleListGroups(w http.ResponseWriter, r *http.Request) {
	list, err := a.groups.List(r.Context())
	if err != nil {
		writeError(w, a.log(r), err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func (a *API) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := a.groups.Get(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, a.log(r), err)
		return
	}
	writeData(w, http.StatusOK, g)
}

func (a *API) handleGroupStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.groups.Status(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, a.log(r), err)
		return
	}
	writeData(w, http.StatusOK, st)
}

func (a *API) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groups.CreateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, a.log(r), err)
		return
	}
	created, err := a.groups.Create(r.Context(), req)
	if err != nil {
		writeError(w, a.log(r), err)
		return
	}
	writeData(w, http.StatusCreated, created)
}

func (a *API) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req groups.UpdateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, a.log(r), err)
		return
	}
	if req.Members == nil {
		writeMessage(w, http.StatusBadRequest, "Members array is required")
		return
	}
	updated, err := a.groups.Update(r.Context(), mux.Vars(r)["name"], req)
	if err != nil {
		writeError(w, a.log(r), err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

func (a *API) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := a.groups.Delete(r.Context(), mux.Vars(r)["name"]); err != nil {
		writeError(w, a.log(r), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMembership(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, a.log(r), err)
		return
	}
	if req.Groups == nil {
		writeMessage(w, http.StatusBadRequest, "Groups array is required")
		return
	}
	changes, err := a.blocklist.ReconcileMembership(r.Context(), mux.Vars(r)["identifier"], req.Groups)
	if err != nil {
		writeError(w, a.log(r), err)
		return
	}
	writeData(w, http.StatusOK, changes)
}

func (a *API) handleListStatic(w http.ResponseWriter, r *http.Request) {
	list, err := a.dhcp.List(r.Context())
	if err != nil {
		writeError(w, a.log(r), err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func (a *API) handleSetStatic(w http.ResponseWriter, r *http.Request) {
	var req dhcp.SetRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, a.log(r), err)
		return
	}
	m, created, err := a.dhcp.Set(r.Context(), req)
	if err != nil {
		writeError(w, a.log(r), err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeData(w, status, staticResponse{Mapping: m, Created: created})
}

func (a *API) handleDeleteStatic(w http.ResponseWriter, r *http.Request) {
	if err := a.dhcp.Delete(r.Context(), mux.Vars(r)["mac"]); err != nil {
		writeError(w, a.log(r), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleValidateIP(w http.ResponseWriter, r *http.Request) {
	var req validateIPRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, a.log(r), err)
		return
	}
	if strings.TrimSpace(req.IP) == "" {
		writeMessage(w, http.StatusBadRequest, "IP address is required")
		return
	}
	reason, err := a.dhcp.ValidateStaticIP(r.Context(), strings.TrimSpace(req.IP), strings.TrimSpace(req.CurrentIP))
	if err != nil {
		writeError(w, a.log(r), err)
		return
	}
	writeData(w, http.StatusOK, validateIPResponse{Valid: reason == "", Reason: reason})
}

func (a *API) handlePending(w http.ResponseWriter, r *http.Request) {
	sum, err := a.pending.Pending(r.Context())
	if err != nil {
		writeError(w, a.log(r), err)
		return
	}
	writeData(w, http.StatusOK, sum)
}

func (a *API) handleApply(w http.ResponseWriter, r *http.Request) {
	service := mux.Vars(r)["service"]
	if err := a.pending.Apply(r.Context(), service); err != nil {
		writeError(w, a.log(r), err)
		return
	}
	a.log(r).Info(map[string]any{"service": service}, "Applied pending changes")
	writeData(w, http.StatusOK, map[string]string{"message": service + " changes applied"})
}

func (a *API) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := a.clients.Overview(r.Context())
	if err != nil {
		writeError(w, a.log(r), err)
		return
	}
	if a.metrics != nil {
		a.metrics.BlockedEntries.Set(float64(ov.TotalBlocked))
	}
	writeData(w, http.StatusOK, ov)
}
