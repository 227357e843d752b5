package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/invoicer/internal/client/models"
)

var errInvalidJSON = errors.New("payload is not valid JSON")

const timeLayout = "2006-01-02 15:04:05"

func (a *App) Status(ctx context.Context) error {
	st, err := a.service.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "mode:     %s\n", a.mode())
	fmt.Fprintf(a.out, "drafts:   %d\n", st.Drafts)
	fmt.Fprintf(a.out, "pending:  %d\n", st.Pending)
	if st.LastSyncAt.IsZero() {
		fmt.Fprintln(a.out, "last sync: never")
		return nil
	}
	fmt.Fprintf(a.out, "last sync: %s (synced %d of %d, failed %d, abandoned %d, deferred %d)\n",
		st.LastSyncAt.Local().Format(timeLayout), st.LastSync.Synced, st.LastSync.Total,
		st.LastSync.Failed, st.LastSync.Abandoned, st.LastSync.Deferred)
	return nil
}

func (a *App) Drafts(ctx context.Context) error {
	ds, err := a.service.ListDrafts(ctx)
	if err != nil {
		return err
	}
	if len(ds) == 0 {
		fmt.Fprintln(a.out, "No drafts.")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUPDATED\tSIZE")
	for _, d := range ds {
		fmt.Fprintf(w, "%s\t%s\t%d\n", d.ID, d.UpdatedAt.Local().Format(timeLayout), len(d.Payload))
	}
	return w.Flush()
}

func (a *App) Draft(ctx context.Context, id string) error {
	d, err := a.service.GetDraft(ctx, id)
	if err != nil {
		return err
	}
	if d == nil {
		fmt.Fprintf(a.out, "Draft %s not found.\n", id)
		return nil
	}
	fmt.Fprintln(a.out, string(d.Payload))
	return nil
}

func (a *App) Save(ctx context.Context, id, payload string) error {
	if !json.Valid([]byte(payload)) {
		return errInvalidJSON
	}
	d := &models.Draft{ID: id, Payload: json.RawMessage(payload), UpdatedAt: time.Now().UTC()}
	if err := a.service.SaveDraft(ctx, d); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Draft %s saved.\n", id)
	return nil
}

func (a *App) RemoveDraft(ctx context.Context, id string) error {
	if err := a.service.DeleteDraft(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Draft %s deleted.\n", id)
	return nil
}

func (a *App) Queue(ctx context.Context) error {
	qs, err := a.service.ListPendingRequests(ctx)
	if err != nil {
		return err
	}
	if len(qs) == 0 {
		fmt.Fprintln(a.out, "Queue is empty.")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMETHOD\tURL\tRETRIES\tENQUEUED")
	for _, r := range qs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Method, r.URL, r.RetryCount, r.EnqueuedAt.Local().Format(timeLayout))
	}
	return w.Flush()
}

func (a *App) Enqueue(ctx context.Context, method, target, body string) error {
	r, err := newRequest(method, target, body)
	if err != nil {
		return err
	}
	if err := a.service.AddPendingRequest(ctx, r); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Queued %s %s as %s.\n", r.Method, r.URL, r.ID)
	return nil
}

func (a *App) Dequeue(ctx context.Context, id string) error {
	if err := a.service.DeletePendingRequest(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Request %s removed.\n", id)
	return nil
}

func (a *App) Submit(ctx context.Context, id, method, target, body string) error {
	if !json.Valid([]byte(body)) {
		return errInvalidJSON
	}
	r, err := newRequest(method, target, body)
	if err != nil {
		return err
	}
	d := &models.Draft{ID: id, Payload: json.RawMessage(body), UpdatedAt: time.Now().UTC()}

	outcome, err := a.service.Submit(ctx, d, r)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Request %s %s.\n", r.ID, outcome)
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	n, err := a.service.SyncPendingRequests(ctx)
	fmt.Fprintf(a.out, "Synced %d request(s).\n", n)
	return err
}

func (a *App) Clear(ctx context.Context) error {
	if err := a.service.ClearAllData(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Local data cleared.")
	return nil
}

// newRequest builds a pending request; an empty body means none is sent.
func newRequest(method, target, body string) (*models.PendingRequest, error) {
	if body == "" {
		r, err := models.NewPendingRequest[any](method, target, nil)
		if err != nil {
			return nil, err
		}
		r.Body = nil
		return r, nil
	}
	if !json.Valid([]byte(body)) {
		return nil, errInvalidJSON
	}
	return models.NewPendingRequest(method, target, json.RawMessage(body))
}
