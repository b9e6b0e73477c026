package demo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/conduit-lang/waypoint/internal/web/auth"
	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

const defaultPageSize = 50

// WidgetInput is the body schema for creating and updating widgets
type WidgetInput struct {
	Name  string  `json:"name" validate:"required,max=100"`
	Price float64 `json:"price" validate:"gte=0"`
}

// PartInput is the body schema for creating parts
type PartInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}

// LoginInput is the body schema for obtaining a token
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// notFound maps ErrNotFound to a 404 failure and passes other errors on
func notFound(err error, what string, id interface{}) error {
	if errors.Is(err, ErrNotFound) {
		return exchange.NewStatusError(http.StatusNotFound, exchange.CodeNotFound,
			fmt.Sprintf("%s %v not found", what, id))
	}
	return err
}

func listWidgets(ctx context.Context, store *Store, limit, offset int) ([]Widget, error) {
	if limit <= 0 || limit > defaultPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return store.ListWidgets(ctx, limit, offset)
}

func showWidget(ctx context.Context, store *Store, id int64) (*Widget, error) {
	w, err := store.GetWidget(ctx, id)
	if err != nil {
		return nil, notFound(err, "widget", id)
	}
	return w, nil
}

func createWidget(ctx context.Context, store *Store, in *WidgetInput) (*exchange.Response, error) {
	w, err := store.CreateWidget(ctx, in.Name, in.Price)
	if err != nil {
		return nil, err
	}
	return exchange.Created(exchange.URI(ctx, strconv.FormatInt(w.ID, 10)), w), nil
}

func updateWidget(ctx context.Context, store *Store, id int64, in *WidgetInput) (*Widget, error) {
	w, err := store.UpdateWidget(ctx, id, in.Name, in.Price)
	if err != nil {
		return nil, notFound(err, "widget", id)
	}
	return w, nil
}

func destroyWidget(ctx context.Context, store *Store, id int64) error {
	return notFound(store.DeleteWidget(ctx, id), "widget", id)
}

func listParts(ctx context.Context, store *Store, widgetID int64) ([]Part, error) {
	if _, err := store.GetWidget(ctx, widgetID); err != nil {
		return nil, notFound(err, "widget", widgetID)
	}
	return store.ListParts(ctx, widgetID)
}

func createPart(ctx context.Context, store *Store, widgetID int64, in *PartInput) (*exchange.Response, error) {
	p, err := store.CreatePart(ctx, widgetID, in.Name, in.Quantity)
	if err != nil {
		return nil, notFound(err, "widget", widgetID)
	}
	return exchange.Created(exchange.URI(ctx, strconv.FormatInt(p.ID, 10)), p), nil
}

type session struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

func createSession(ctx context.Context, store *Store, tokens *auth.TokenService, in *LoginInput) (*exchange.Response, error) {
	invalid := exchange.NewStatusError(http.StatusUnauthorized, exchange.CodeUnauthorized, "invalid email or password")

	u, err := store.FindUserByEmail(ctx, in.Email)
	if errors.Is(err, ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(in.Password, u.PasswordHash) {
		return nil, invalid
	}

	token, err := tokens.GenerateToken(strconv.FormatInt(u.ID, 10), u.Email, u.Roles)
	if err != nil {
		return nil, err
	}
	return exchange.Created("", session{Token: token, Email: u.Email}), nil
}

func whoami(p *auth.Principal) *auth.Principal {
	return p
}

type status struct {
	Version string `json:"version"`
	Status  string `json:"status"`
	Mount   string `json:"mount,omitempty"`
}

// statusV1 and statusV2 share GET /status and are told apart by the
// Accept-Version header
func statusV1() status {
	return status{Version: "1", Status: "ok"}
}

func statusV2(mount string) status {
	return status{Version: "2", Status: "ok", Mount: mount}
}

func acceptsVersion(v string) func(*exchange.Request) bool {
	return func(req *exchange.Request) bool {
		got := req.Header.Get("Accept-Version")
		if got == "" {
			return v == "1"
		}
		return got == v
	}
}
