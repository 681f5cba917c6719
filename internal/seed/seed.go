// Package seed loads users, categories and trigger rules from YAML.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

//go:embed sample.yaml
var sample []byte

// File is the seed document.
type File struct {
	Users        []User     `yaml:"users"`
	Categories   []Category `yaml:"categories"`
	TriggerRules []Rule     `yaml:"trigger_rules"`
}

type User struct {
	Username   string      `yaml:"username"`
	Email      string      `yaml:"email"`
	Password   string      `yaml:"password"`
	Role       domain.Role `yaml:"role"`
	FirstName  string      `yaml:"first_name"`
	LastName   string      `yaml:"last_name"`
	Department string      `yaml:"department"`
	Company    string      `yaml:"company"`
}

type Category struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Color       string `yaml:"color"`
}

// Rule references its category by name and its recipients by username.
type Rule struct {
	Name     string               `yaml:"name"`
	Keywords string               `yaml:"keywords"`
	Action   domain.TriggerAction `yaml:"action"`
	Category string               `yaml:"category"`
	Notify   []string             `yaml:"notify"`
	Active   *bool                `yaml:"active"`
}

// Summary counts what Apply created and skipped.
type Summary struct {
	UsersCreated      int
	CategoriesCreated int
	RulesCreated      int
	Skipped           int
}

// Sample returns the bundled demo data.
func Sample() (*File, error) {
	return Decode(bytes.NewReader(sample))
}

// LoadFile reads a seed document from path.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses and validates a seed document. Unknown keys are rejected.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var file File
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if err := file.validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

func (f *File) validate() error {
	for i, u := range f.Users {
		if u.Username == "" || u.Email == "" || u.Password == "" {
			return fmt.Errorf("users[%d]: username, email and password are required", i)
		}
		if !u.Role.Valid() {
			return fmt.Errorf("users[%d]: unknown role %q", i, u.Role)
		}
	}
	for i, c := range f.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("categories[%d]: name is required", i)
		}
	}
	for i, r := range f.TriggerRules {
		if r.Name == "" || strings.TrimSpace(r.Keywords) == "" {
			return fmt.Errorf("trigger_rules[%d]: name and keywords are required", i)
		}
		if !r.Action.Valid() {
			return fmt.Errorf("trigger_rules[%d]: unknown action %q", i, r.Action)
		}
		if r.Action == domain.TriggerNotify && len(r.Notify) == 0 {
			return fmt.Errorf("trigger_rules[%d]: notify rules need at least one recipient", i)
		}
	}
	return nil
}

// Apply writes the document in one transaction. Records that already exist
// (users by username, categories and rules by name) are left untouched.
func Apply(ctx context.Context, store repository.Store, file *File, bcryptCost int, logger *zap.Logger) (Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var sum Summary
	err := store.WithinTx(ctx, func(r repository.Repositories) error {
		sum = Summary{}
		users := map[string]*domain.User{}
		for _, u := range file.Users {
			existing, err := r.Users.GetByUsername(ctx, u.Username)
			if err == nil {
				users[u.Username] = existing
				sum.Skipped++
				continue
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			hash, err := auth.HashPassword(u.Password, bcryptCost)
			if err != nil {
				return err
			}
			user := &domain.User{
				Username:     u.Username,
				Email:        strings.ToLower(u.Email),
				FirstName:    u.FirstName,
				LastName:     u.LastName,
				PasswordHash: hash,
				Role:         u.Role,
				Department:   optional(u.Department),
				Company:      optional(u.Company),
			}
			if err := r.Users.Create(ctx, user); err != nil {
				return fmt.Errorf("create user %s: %w", u.Username, err)
			}
			users[u.Username] = user
			sum.UsersCreated++
			logger.Info("seeded user", zap.String("username", u.Username), zap.String("role", string(u.Role)))
		}

		existingCategories, err := r.Categories.List(ctx)
		if err != nil {
			return err
		}
		categories := map[string]string{}
		for _, c := range existingCategories {
			categories[c.Name] = c.ID
		}
		for _, c := range file.Categories {
			if _, ok := categories[c.Name]; ok {
				sum.Skipped++
				continue
			}
			color := c.Color
			if color == "" {
				color = domain.DefaultCategoryColor
			}
			category := &domain.Category{Name: c.Name, Description: c.Description, Color: color}
			if err := r.Categories.Create(ctx, category); err != nil {
				return fmt.Errorf("create category %s: %w", c.Name, err)
			}
			categories[c.Name] = category.ID
			sum.CategoriesCreated++
		}

		existingRules, err := r.Rules.List(ctx)
		if err != nil {
			return err
		}
		ruleNames := map[string]bool{}
		for _, rule := range existingRules {
			ruleNames[rule.Name] = true
		}
		for _, entry := range file.TriggerRules {
			if ruleNames[entry.Name] {
				sum.Skipped++
				continue
			}
			rule := &domain.TriggerRule{
				Name:     entry.Name,
				Keywords: entry.Keywords,
				Action:   entry.Action,
				Active:   entry.Active == nil || *entry.Active,
			}
			if entry.Category != "" {
				id, ok := categories[entry.Category]
				if !ok {
					return fmt.Errorf("rule %s: unknown category %q", entry.Name, entry.Category)
				}
				rule.CategoryID = &id
			}
			for _, username := range entry.Notify {
				u, ok := users[username]
				if !ok {
					found, err := r.Users.GetByUsername(ctx, username)
					if err != nil {
						return fmt.Errorf("rule %s: recipient %q: %w", entry.Name, username, err)
					}
					u = found
				}
				if !u.Role.IsStaff() {
					return fmt.Errorf("rule %s: recipient %q is not staff", entry.Name, username)
				}
				rule.NotifyUserIDs = append(rule.NotifyUserIDs, u.ID)
			}
			if err := r.Rules.Create(ctx, rule); err != nil {
				return fmt.Errorf("create rule %s: %w", entry.Name, err)
			}
			ruleNames[entry.Name] = true
			sum.RulesCreated++
		}
		return nil
	})
	return sum, err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
