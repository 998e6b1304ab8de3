package service

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntentClassifier_Classify(t *testing.T) {
	c := MustIntentClassifier(DefaultIntentRules)

	tests := []struct {
		name     string
		query    string
		expected domain.Namespace
	}{
		{"nec keyword", "What does the NEC say about GFCI?", domain.NamespaceNEC},
		{"national electrical code", "national   electrical code grounding", domain.NamespaceNEC},
		{"nfpa 70", "What does NFPA 70 Article 250 require?", domain.NamespaceNEC},
		{"nfpa70 no space", "nfpa70 rules", domain.NamespaceNEC},
		{"code article", "which code article covers this", domain.NamespaceNEC},
		{"code section", "see CODE SECTION 690", domain.NamespaceNEC},
		{"wattmonk name", "Who is Wattmonk?", domain.NamespaceWattmonk},
		{"permit", "How long does a permit take?", domain.NamespaceWattmonk},
		{"plan set", "Can I get a plan  set revision?", domain.NamespaceWattmonk},
		{"turnaround", "What is your turnaround time?", domain.NamespaceWattmonk},
		{"as built", "Do you do as-built? as built drawings", domain.NamespaceWattmonk},
		{"general greeting", "hello", domain.NamespaceGeneral},
		{"general weather", "what's the weather", domain.NamespaceGeneral},
		{"nec is a word", "connection issues", domain.NamespaceGeneral},
		{"empty", "", domain.NamespaceGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.Classify(tt.query))
		})
	}
}

func TestIntentClassifier_NECWinsOverWattmonk(t *testing.T) {
	c := MustIntentClassifier(DefaultIntentRules)
	assert.Equal(t, domain.NamespaceNEC, c.Classify("Does Wattmonk follow the NEC for permit sets?"))
}

func TestIntentClassifier_CaseInsensitiveAndDeterministic(t *testing.T) {
	c := MustIntentClassifier(DefaultIntentRules)
	lower := c.Classify("what is nfpa 70?")
	upper := c.Classify("WHAT IS NFPA 70?")
	assert.Equal(t, lower, upper)

	for i := 0; i < 5; i++ {
		assert.Equal(t, lower, c.Classify("what is nfpa 70?"))
	}
}

func TestIntentClassifier_ConcurrentUse(t *testing.T) {
	c := MustIntentClassifier(DefaultIntentRules)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, domain.NamespaceNEC, c.Classify("NEC article 250"))
		}()
	}
	wg.Wait()
}

func TestNewIntentClassifier_Errors(t *testing.T) {
	_, err := NewIntentClassifier([]IntentRule{{Namespace: domain.NamespaceGeneral, Patterns: []string{"x"}}})
	assert.ErrorContains(t, err, "has no index")

	_, err = NewIntentClassifier([]IntentRule{{Namespace: domain.NamespaceNEC, Patterns: []string{"("}}})
	assert.ErrorContains(t, err, "compile")
}

func TestLoadIntentClassifier(t *testing.T) {
	t.Run("default table when path empty", func(t *testing.T) {
		c, err := LoadIntentClassifier("")
		require.NoError(t, err)
		assert.Equal(t, domain.NamespaceNEC, c.Classify("nec"))
	})

	t.Run("yaml override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "intents.yaml")
		content := `intents:
  - namespace: wattmonk
    patterns:
      - 'solar\s+design'
  - namespace: nec
    patterns:
      - 'ampacity'
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		c, err := LoadIntentClassifier(path)
		require.NoError(t, err)
		assert.Equal(t, domain.NamespaceWattmonk, c.Classify("Solar Design for ampacity"))
		assert.Equal(t, domain.NamespaceNEC, c.Classify("ampacity tables"))
		assert.Equal(t, domain.NamespaceGeneral, c.Classify("nec"))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadIntentClassifier(filepath.Join(t.TempDir(), "none.yaml"))
		assert.ErrorContains(t, err, "read intents file")
	})

	t.Run("empty table", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "intents.yaml")
		require.NoError(t, os.WriteFile(path, []byte("intents: []\n"), 0o644))
		_, err := LoadIntentClassifier(path)
		assert.ErrorContains(t, err, "defines no intents")
	})
}
