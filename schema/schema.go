// Package schema has the models shared by all parts of issuetrend.
package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// RepoID identifies a tracked GitHub repository.
type RepoID struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// String returns the owner/name form of the repository.
func (r RepoID) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepoID parses an "owner/name" string.
// Surrounding whitespace and a trailing ".git" suffix are tolerated.
func ParseRepoID(s string) (RepoID, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".git")
	owner, name, ok := strings.Cut(s, "/")
	if !ok {
		return RepoID{}, fmt.Errorf("missing slash in repository %q (expected owner/name)", s)
	}
	repo := RepoID{Owner: owner, Name: name}
	if err := repo.Validate(); err != nil {
		return RepoID{}, err
	}
	return repo, nil
}

// repoPartRe matches the characters GitHub allows in owner and repository names.
var repoPartRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Validate rejects owner or name parts that are empty, "." or "..", or that carry
// characters outside GitHub's name set. Both parts become path elements on disk.
func (r RepoID) Validate() error {
	for _, part := range []string{r.Owner, r.Name} {
		if part == "." || part == ".." || !repoPartRe.MatchString(part) {
			return fmt.Errorf("invalid repository %q (expected owner/name)", r.String())
		}
	}
	return nil
}

// ParseRepoIDs parses a list of repositories, dropping duplicates while keeping input order.
func ParseRepoIDs(values []string) ([]RepoID, error) {
	seen := make(map[RepoID]struct{}, len(values))
	repos := make([]RepoID, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		repo, err := ParseRepoID(v)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[repo]; dup {
			continue
		}
		seen[repo] = struct{}{}
		repos = append(repos, repo)
	}
	return repos, nil
}
