package wizard

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"policybolt/internal/model"
)

var ErrInvalidRepositoryURL = errors.New("invalid GitHub repository URL")

var (
	ownerPattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)
	repoPattern  = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)
)

// ParseRepositoryURL accepts https://github.com/{owner}/{repo} with an
// optional "www." host prefix, ".git" suffix or trailing slash.
func ParseRepositoryURL(raw string) (model.Repository, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.Repository{}, ErrInvalidRepositoryURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return model.Repository{}, ErrInvalidRepositoryURL
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return model.Repository{}, ErrInvalidRepositoryURL
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host != "github.com" {
		return model.Repository{}, ErrInvalidRepositoryURL
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 {
		return model.Repository{}, ErrInvalidRepositoryURL
	}
	owner := parts[0]
	name := strings.TrimSuffix(parts[1], ".git")
	if !ownerPattern.MatchString(owner) || !repoPattern.MatchString(name) || name == "." || name == ".." {
		return model.Repository{}, ErrInvalidRepositoryURL
	}
	return model.Repository{Owner: owner, Name: name}, nil
}
