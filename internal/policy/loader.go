package policy

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skillbridge/review-engine/internal/models"
)

// Policy holds the review rules for one document type
type Policy struct {
	Type              models.DocumentType `json:"type"`
	DisplayName       string              `json:"display_name"`
	RequireRating     bool                `json:"require_rating"`
	MinRating         int                 `json:"min_rating"`
	MaxRating         int                 `json:"max_rating"`
	MaxFeedbackLength int                 `json:"max_feedback_length"`
	// ClaimTTL bounds how long a pending request may sit before the
	// expiry worker releases the claim. Zero disables expiry.
	ClaimTTL time.Duration `json:"claim_ttl"`
}

// policyFile is the YAML representation of a policy
type policyFile struct {
	Type              string `yaml:"type"`
	DisplayName       string `yaml:"display_name"`
	RequireRating     *bool  `yaml:"require_rating"`
	MinRating         int    `yaml:"min_rating"`
	MaxRating         int    `yaml:"max_rating"`
	MaxFeedbackLength int    `yaml:"max_feedback_length"`
	ClaimTTL          string `yaml:"claim_ttl"`
}

// Catalog manages loading and lookup of review policies
type Catalog struct {
	mu       sync.RWMutex
	policies map[models.DocumentType]*Policy
}

// NewCatalog creates a catalog seeded with the built-in defaults for
// resumes and cover letters. YAML files loaded afterwards override them.
func NewCatalog() *Catalog {
	c := &Catalog{
		policies: make(map[models.DocumentType]*Policy),
	}

	c.policies[models.DocumentResume] = defaultPolicy(models.DocumentResume, "Resume")
	c.policies[models.DocumentCoverLetter] = defaultPolicy(models.DocumentCoverLetter, "Cover Letter")

	return c
}

func defaultPolicy(t models.DocumentType, displayName string) *Policy {
	return &Policy{
		Type:              t,
		DisplayName:       displayName,
		RequireRating:     true,
		MinRating:         1,
		MaxRating:         5,
		MaxFeedbackLength: 4000,
		ClaimTTL:          21 * 24 * time.Hour,
	}
}

// LoadFromDir loads all YAML policies from a directory
func (c *Catalog) LoadFromDir(dir string) error {
	slog.Info("loading review policies from directory", "dir", dir)

	patterns := []string{"*.yaml", "*.yml"}
	var files []string

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}

	loaded := 0
	for _, file := range files {
		if err := c.LoadFromFile(file); err != nil {
			slog.Warn("failed to load policy", "file", file, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("review policies loaded", "count", loaded, "total_files", len(files))

	return nil
}

// LoadFromFile loads a single policy from a YAML file
func (c *Catalog) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	docType := models.DocumentType(pf.Type)
	if !docType.IsValid() {
		return fmt.Errorf("unknown document type: %q", pf.Type)
	}

	policy := defaultPolicy(docType, pf.DisplayName)
	if pf.DisplayName == "" {
		policy.DisplayName = string(docType)
	}

	if pf.RequireRating != nil {
		policy.RequireRating = *pf.RequireRating
	}
	if pf.MinRating > 0 {
		policy.MinRating = pf.MinRating
	}
	if pf.MaxRating > 0 {
		policy.MaxRating = pf.MaxRating
	}
	if policy.MinRating > policy.MaxRating {
		return fmt.Errorf("min_rating %d exceeds max_rating %d", policy.MinRating, policy.MaxRating)
	}
	if pf.MaxFeedbackLength > 0 {
		policy.MaxFeedbackLength = pf.MaxFeedbackLength
	}

	if pf.ClaimTTL != "" {
		d, err := time.ParseDuration(pf.ClaimTTL)
		if err != nil {
			return fmt.Errorf("invalid claim_ttl %q: %w", pf.ClaimTTL, err)
		}
		policy.ClaimTTL = d
	}

	c.mu.Lock()
	c.policies[docType] = policy
	c.mu.Unlock()

	slog.Debug("policy loaded", "type", docType, "claim_ttl", policy.ClaimTTL)

	return nil
}

// Get returns the policy for a document type, nil for unknown types
func (c *Catalog) Get(t models.DocumentType) *Policy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.policies[t]
}

// List returns all policies sorted by document type
func (c *Catalog) List() []*Policy {
	c.mu.RLock()
	defer c.mu.RUnlock()

	policies := make([]*Policy, 0, len(c.policies))
	for _, p := range c.policies {
		policies = append(policies, p)
	}

	sort.Slice(policies, func(i, j int) bool {
		return policies[i].Type < policies[j].Type
	})

	return policies
}
