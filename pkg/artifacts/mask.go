package artifacts

import (
	"strings"
	"sync"

	"github.com/uiflow/uiflow/pkg/schema"
)

// MaskString replaces every secret value in persisted artifacts.
const MaskString = "***"

// Masker replaces registered secret values in text. Values are registered
// statically from the scenario and dynamically by the runner as secret
// step fields are expanded.
type Masker struct {
	mu     sync.Mutex
	values []string
}

// NewMasker creates an empty masker.
func NewMasker() *Masker {
	return &Masker{}
}

// AddSecret registers a plaintext value to be masked. Empty and very
// short values are ignored — masking one- or two-character strings would
// shred unrelated text.
func (m *Masker) AddSecret(value string) {
	if len(value) < 3 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.values {
		if v == value {
			return
		}
	}
	m.values = append(m.values, value)
}

// Mask replaces every registered secret in text with the mask string.
func (m *Masker) Mask(text string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.values {
		text = strings.ReplaceAll(text, v, MaskString)
	}
	return text
}

// CollectScenarioSecrets registers the literal values of secret fill
// steps. Values that are variable references resolve at execution time
// and are registered then by the runner.
func (m *Masker) CollectScenarioSecrets(s *schema.Scenario) {
	for _, fs := range s.FlatSteps() {
		st := fs.Step
		if st.Type != "fill" || !st.Secret() {
			continue
		}
		value := st.String("value")
		if value != "" && !strings.Contains(value, "${") {
			m.AddSecret(value)
		}
	}
}
