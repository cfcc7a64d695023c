package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/buildtall-systems/gifticon/internal/auth"
	"github.com/buildtall-systems/gifticon/internal/catalog"
	"github.com/buildtall-systems/gifticon/internal/payment"
	"github.com/buildtall-systems/gifticon/internal/share"
	"github.com/buildtall-systems/gifticon/internal/workflow"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type handler struct {
	background

	brand    string
	currency catalog.Currency
	store    *catalog.Store
	auth     *auth.Manager
	sessions *Sessions
	logger   *zap.Logger
}

func (h *handler) workflowFor(r *http.Request) (string, *workflow.Workflow) {
	subject, _ := auth.SubjectFromContext(r.Context())
	return subject, h.sessions.Get(subject)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, h.logger, status, errorView{Error: err.Error()})
}

// respond writes the snapshot, using the error's status when err is set.
func (h *handler) respond(w http.ResponseWriter, r *http.Request, snap workflow.Snapshot, err error) {
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("workflow operation failed", zap.String("path", r.URL.Path), zap.Error(err))
		}
	}
	writeJSON(w, h.logger, status, newSnapshotView(snap))
}

func (h *handler) loginPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"brand": h.brand})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	input, err := decodeJSON[loginInput](r.Body)
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, errorView{Error: "malformed request body"})
		return
	}
	token, err := h.auth.Login(r.Context(), input.Phone, input.OTP)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "jwt",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set("Authorization", "Bearer "+token)
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"token": token, "redirect": auth.HomePath})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	subject, _ := auth.SubjectFromContext(r.Context())
	if err := h.auth.Logout(r.Context(), subject); err != nil {
		h.fail(w, r, err)
		return
	}
	h.sessions.Forget(subject)
	http.SetCookie(w, &http.Cookie{Name: "jwt", Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}

func (h *handler) catalogView(fs catalog.FilterState) catalogView {
	all := h.store.List()
	matched := catalog.Filter(all, fs)
	products := make([]productView, 0, len(matched))
	for _, p := range matched {
		products = append(products, productView{
			Product:      p,
			DisplayPrice: catalog.FormatPrice(p.Price, h.currency),
			Bucket:       catalog.Classify(p.Price),
		})
	}
	return catalogView{
		Filter:    fs,
		Products:  products,
		Merchants: catalog.Merchants(all),
		Occasions: catalog.Occasions(all),
	}
}

func (h *handler) home(w http.ResponseWriter, r *http.Request) {
	_, wf := h.workflowFor(r)
	writeJSON(w, h.logger, http.StatusOK, struct {
		Brand   string       `json:"brand"`
		Catalog catalogView  `json:"catalog"`
		Order   snapshotView `json:"order"`
	}{
		Brand:   h.brand,
		Catalog: h.catalogView(catalog.FilterState{}),
		Order:   newSnapshotView(wf.Snapshot()),
	})
}

func (h *handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fs := catalog.ParseFilterState(q.Get("merchant"), q.Get("occasion"), q.Get("price"), q.Get("search"))
	writeJSON(w, h.logger, http.StatusOK, h.catalogView(fs))
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	_, wf := h.workflowFor(r)
	writeJSON(w, h.logger, http.StatusOK, wf.History())
}

func (h *handler) snapshot(w http.ResponseWriter, r *http.Request) {
	_, wf := h.workflowFor(r)
	writeJSON(w, h.logger, http.StatusOK, newSnapshotView(wf.Snapshot()))
}

func (h *handler) startPurchase(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	input, err := decodeJSON[startInput](r.Body)
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, errorView{Error: "malformed request body"})
		return
	}
	_, wf := h.workflowFor(r)
	snap, err := wf.StartPurchase(r.Context(), input.ProductID)
	h.respond(w, r, snap, err)
}

func (h *handler) beginPayment(w http.ResponseWriter, r *http.Request) {
	_, wf := h.workflowFor(r)
	snap, err := wf.BeginPayment(r.Context())
	h.respond(w, r, snap, err)
}

func (h *handler) choosePaymentMethod(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	input, err := decodeJSON[methodInput](r.Body)
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, errorView{Error: "malformed request body"})
		return
	}
	_, wf := h.workflowFor(r)
	snap, err := wf.ChoosePaymentMethod(r.Context(), payment.Method(input.Method))
	h.respond(w, r, snap, err)
}

func (h *handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	h.pay(w, r, (*workflow.Workflow).ConfirmPaymentAsync)
}

func (h *handler) retryPayment(w http.ResponseWriter, r *http.Request) {
	h.pay(w, r, (*workflow.Workflow).RetryPaymentAsync)
}

type payFunc func(*workflow.Workflow, context.Context) (workflow.Snapshot, <-chan workflow.Outcome, error)

// pay answers 202 once the order is processing. Clients poll the order for
// the gateway's outcome.
func (h *handler) pay(w http.ResponseWriter, r *http.Request, op payFunc) {
	subject, wf := h.workflowFor(r)

	// The charge outlives the request.
	snap, outcome, err := op(wf, context.WithoutCancel(r.Context()))
	if err != nil {
		h.respond(w, r, snap, err)
		return
	}
	h.goPay(func() {
		o := <-outcome
		if o.Err != nil {
			h.logger.Info("payment settled with error",
				zap.String("subject", subject),
				zap.String("status", o.Snapshot.Status),
				zap.Error(o.Err),
			)
		}
	})
	writeJSON(w, h.logger, http.StatusAccepted, newSnapshotView(snap))
}

func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	_, wf := h.workflowFor(r)
	snap, err := wf.Cancel(r.Context())
	h.respond(w, r, snap, err)
}

func (h *handler) closeShare(w http.ResponseWriter, r *http.Request) {
	_, wf := h.workflowFor(r)
	snap, err := wf.CloseShare(r.Context())
	h.respond(w, r, snap, err)
}

func (h *handler) searchContacts(w http.ResponseWriter, r *http.Request) {
	_, wf := h.workflowFor(r)
	contacts, err := wf.ShareToContact(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []share.Contact{}
	}
	writeJSON(w, h.logger, http.StatusOK, contacts)
}

func (h *handler) sendToContact(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	input, err := decodeJSON[sendInput](r.Body)
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, errorView{Error: "malformed request body"})
		return
	}
	_, wf := h.workflowFor(r)
	contacts, err := wf.ShareToContact(r.Context(), input.Query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	for _, c := range contacts {
		if c.ID != input.ContactID {
			continue
		}
		if err := wf.SendToContact(c); err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, h.logger, http.StatusAccepted, c)
		return
	}
	writeJSON(w, h.logger, http.StatusNotFound, errorView{Error: "contact not found"})
}

func (h *handler) shareToChannel(w http.ResponseWriter, r *http.Request) {
	kind, err := share.ParseChannel(chi.URLParam(r, "channel"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_, wf := h.workflowFor(r)
	msg, err := wf.ShareToChannel(kind)
	switch {
	case errors.Is(err, share.ErrShareChannelUnavailable):
		writeJSON(w, h.logger, http.StatusOK, shareView{ComposedMessage: msg, Warning: err.Error()})
	case err != nil:
		h.fail(w, r, err)
	default:
		writeJSON(w, h.logger, http.StatusOK, shareView{ComposedMessage: msg})
	}
}
