package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/rendis/aivault/internal/secrets"
	"github.com/rendis/aivault/pkg/schema"
)

// pageData is everything the index template sees. It carries metadata only.
type pageData struct {
	Secrets []secrets.SecretMetadata
	Edit    *editView
	Message string
	IsError bool
	Tag     string
	Filter  string
}

// editView is a secret without its value.
type editView struct {
	Name        string
	Description string
	Tags        []string
	CreatedAt   string
	UpdatedAt   string
}

type banner struct {
	message string
	isError bool
}

func info(format string, args ...any) banner {
	return banner{message: fmt.Sprintf(format, args...)}
}

func failure(err error) banner {
	return banner{message: "Error: " + schema.Message(err), isError: true}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, nil, banner{})
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	sec, err := s.deps.Vault.GetSecret(r.Context(), name)
	switch {
	case err != nil:
		s.render(w, r, nil, failure(err))
	case sec == nil:
		s.render(w, r, nil, banner{message: fmt.Sprintf("Secret %s not found", name), isError: true})
	default:
		s.render(w, r, &editView{
			Name:        sec.Name,
			Description: sec.Description,
			Tags:        sec.Tags,
			CreatedAt:   sec.CreatedAt,
			UpdatedAt:   sec.UpdatedAt,
		}, banner{})
	}
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, nil, failure(err))
		return
	}
	name := r.PostForm.Get("name")
	value := r.PostForm.Get("value")
	if value == "" {
		s.render(w, r, nil, banner{message: "Error: value is required", isError: true})
		return
	}

	err := s.deps.Vault.SetSecret(r.Context(), name, value,
		r.PostForm.Get("description"), secrets.ParseTags(r.PostForm.Get("tags")))
	if err != nil {
		s.render(w, r, nil, failure(err))
		return
	}
	s.render(w, r, nil, info("Secret %s saved", name))
}

// handleUpdate applies an edit. A blank value keeps the stored one.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, nil, failure(err))
		return
	}
	ctx := r.Context()
	name := r.PostForm.Get("name")

	existing, err := s.deps.Vault.GetSecret(ctx, name)
	if err != nil {
		s.render(w, r, nil, failure(err))
		return
	}
	if existing == nil {
		s.render(w, r, nil, banner{message: fmt.Sprintf("Secret %s not found", name), isError: true})
		return
	}

	value := r.PostForm.Get("value")
	if value == "" {
		value = existing.Value
	}
	err = s.deps.Vault.SetSecret(ctx, name, value,
		r.PostForm.Get("description"), secrets.ParseTags(r.PostForm.Get("tags")))
	if err != nil {
		s.render(w, r, nil, failure(err))
		return
	}
	s.render(w, r, nil, info("Secret %s updated", name))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, nil, failure(err))
		return
	}
	name := r.PostForm.Get("name")

	deleted, err := s.deps.Vault.DeleteSecret(r.Context(), name)
	switch {
	case err != nil:
		s.render(w, r, nil, failure(err))
	case deleted:
		s.render(w, r, nil, info("Secret %s deleted", name))
	default:
		s.render(w, r, nil, banner{message: fmt.Sprintf("Secret %s not found", name), isError: true})
	}
}

// render lists secrets (honouring ?tag= and ?filter=) and executes the page.
// A listing failure is shown in the banner unless another message is set.
func (s *Server) render(w http.ResponseWriter, r *http.Request, edit *editView, b banner) {
	query := r.URL.Query()
	data := pageData{
		Edit:    edit,
		Message: b.message,
		IsError: b.isError,
		Tag:     query.Get("tag"),
		Filter:  query.Get("filter"),
	}

	list, err := s.list(r.Context(), data.Tag, data.Filter)
	if err != nil {
		s.deps.Logger.WarnContext(r.Context(), "list secrets failed", "error", err)
		if data.Message == "" {
			data.Message, data.IsError = failure(err).message, true
		}
	}
	data.Secrets = list

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.ExecuteTemplate(w, "base", data); err != nil {
		s.deps.Logger.ErrorContext(r.Context(), "template render error", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *Server) list(ctx context.Context, tag, filter string) ([]secrets.SecretMetadata, error) {
	if filter == "" {
		return s.deps.Vault.ListSecrets(ctx, tag)
	}
	list, err := s.deps.Vault.FilterSecrets(ctx, filter)
	if err != nil {
		// Fall back to the unfiltered listing so the page stays usable.
		all, listErr := s.deps.Vault.ListSecrets(ctx, tag)
		if listErr != nil {
			return nil, listErr
		}
		return all, err
	}
	if tag == "" {
		return list, nil
	}
	return slices.DeleteFunc(list, func(m secrets.SecretMetadata) bool {
		return !slices.Contains(m.Tags, tag)
	}), nil
}

