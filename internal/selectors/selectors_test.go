package selectors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
urls:
  home: "https://dreamina.capcut.com/"
  image_generate: "https://dreamina.capcut.com/ai-tool/generate"
elements:
  image_generation:
    prompt_input: "//textarea[contains(@class,'prompt')]"
    generate_button: "//button[contains(@class,'submit')]"
  points_monitoring:
    primary_selector: "//span[contains(@class,'credit')]"
    fallback_selectors:
      - "//div[@data-testid='balance']"
      - "//span[contains(text(),'积分')]"
  aspect_ratio_selection:
    "9:16": "//div[@data-ratio='9:16']"
  month_picker:
    month_option: "//li[text()='{month}']"
wait_times:
  queue_timeout: 600
  generation_timeout: 900
`

func TestParseAndLookup(t *testing.T) {
	r, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://dreamina.capcut.com/ai-tool/generate", r.URL("image_generate"))
	assert.Equal(t, "//textarea[contains(@class,'prompt')]", r.Element("image_generation", "prompt_input"))
	assert.Equal(t, "//div[@data-ratio='9:16']", r.Element("aspect_ratio_selection", "9:16"))
}

func TestElementListScalarAndSequence(t *testing.T) {
	r, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	// Скаляр превращается в список из одного элемента
	primary := r.ElementList("points_monitoring", "primary_selector")
	require.Len(t, primary, 1)

	fallbacks := r.ElementList("points_monitoring", "fallback_selectors")
	require.Len(t, fallbacks, 2)
	assert.Equal(t, "//div[@data-testid='balance']", fallbacks[0])
}

func TestMissingKeysDegradeToZeroValues(t *testing.T) {
	r, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Empty(t, r.URL("login"))
	assert.Empty(t, r.Element("image_generation", "nope"))
	assert.Empty(t, r.Element("no_such_category", "prompt_input"))
	assert.Nil(t, r.ElementList("no_such_category", "anything"))
}

func TestWaitTimes(t *testing.T) {
	r, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 600*time.Second, r.WaitTime("queue_timeout"))
	assert.Equal(t, 10*time.Second, r.WaitTime("unknown"))
}

func TestFormat(t *testing.T) {
	r, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	sel := r.Format("month_picker", "month_option", map[string]string{"month": "May"})
	assert.Equal(t, "//li[text()='May']", sel)

	// Отсутствующий параметр оставляет плейсхолдер как есть
	sel = r.Format("month_picker", "month_option", map[string]string{"day": "5"})
	assert.Equal(t, "//li[text()='{month}']", sel)
}
