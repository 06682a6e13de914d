// Package locator finds a provider by alias and id together with any private
// thread the actor already shares with them.
package locator

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"messenger-service/internal/apperrors"
	"messenger-service/internal/models"
	"messenger-service/internal/providers"
	"messenger-service/internal/repositories"
)

var ErrProviderNotFound = apperrors.NewWithStatus(apperrors.ErrCodeNotFound, "Unable to locate a recipient using those parameters.", http.StatusNotFound)

// Result is empty when nothing resolved. Thread is nil when no private thread exists yet.
type Result struct {
	Recipient *models.Provider `json:"recipient"`
	Thread    *models.Thread   `json:"thread"`
}

type Locator struct {
	directory *providers.Directory
	threads   repositories.ThreadRepository
}

func New(directory *providers.Directory, threads repositories.ThreadRepository) *Locator {
	return &Locator{directory: directory, threads: threads}
}

// Locate resolves alias and id. An unknown alias, an unknown id or the actor itself
// yield an empty Result and no error.
func (l *Locator) Locate(ctx context.Context, actor models.ProviderRef, alias, id string) (Result, error) {
	ref := models.Ref(alias, id)
	if ref.Equal(actor) {
		return Result{}, nil
	}

	recipient, ok, err := l.directory.Find(ctx, ref)
	if err != nil {
		return Result{}, fmt.Errorf("find recipient: %w", err)
	}
	if !ok {
		return Result{}, nil
	}

	result := Result{Recipient: &recipient}
	thread, err := l.threads.FindPrivateBetween(ctx, actor, recipient.Owner())
	switch {
	case errors.Is(err, repositories.ErrThreadNotFound):
	case err != nil:
		return Result{}, fmt.Errorf("find private thread: %w", err)
	default:
		result.Thread = &thread
	}
	return result, nil
}

// LocateOrFail is Locate, but a missing recipient is ErrProviderNotFound.
func (l *Locator) LocateOrFail(ctx context.Context, actor models.ProviderRef, alias, id string) (Result, error) {
	result, err := l.Locate(ctx, actor, alias, id)
	if err != nil {
		return Result{}, err
	}
	if result.Recipient == nil {
		return Result{}, ErrProviderNotFound
	}
	return result, nil
}
