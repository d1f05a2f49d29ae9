package i18n

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ashwch/bumblebee/internal/appdirs"
)

// Catalog holds every user-facing sentence: prompt texts, spoken summaries and
// the live-query fallback lines.
type Catalog struct {
	Locale  string            `json:"locale"`
	Spoken  map[string]string `json:"spoken"`
	Prompts PromptCatalog     `json:"prompts"`
	Live    LiveCatalog       `json:"live"`
}

type PromptCatalog struct {
	DidYouMean  string `json:"did_you_mean"`
	AllowAction string `json:"allow_action"`
	ChooseTitle string `json:"choose_title"`
	Executing   string `json:"executing"`
}

type LiveCatalog struct {
	Unavailable  string `json:"unavailable"`
	LimitReached string `json:"limit_reached"`
}

func LoadCatalog(requestedLocale string) Catalog {
	locale := NormalizeLocale(requestedLocale)
	if locale == "" {
		locale = DetectLocale()
	}
	if locale == "" {
		locale = "en"
	}
	base := baseCatalogForLocale(locale)

	if override, ok := loadCommunityCatalog(locale); ok {
		merged := mergeCatalog(base, override)
		if strings.TrimSpace(override.Locale) != "" {
			merged.Locale = NormalizeLocale(override.Locale)
		} else {
			merged.Locale = locale
		}
		return merged
	}

	base.Locale = locale
	return base
}

func baseCatalogForLocale(locale string) Catalog {
	normalized := strings.ToLower(NormalizeLocale(locale))
	switch {
	case strings.HasPrefix(normalized, "hi"):
		// Hindi first, English fallback retained.
		base := mergeCatalog(defaultEnglishCatalog(), defaultHindiCatalog())
		base.Locale = "hi"
		return base
	default:
		base := defaultEnglishCatalog()
		base.Locale = "en"
		return base
	}
}

func DetectLocale() string {
	candidates := []string{
		os.Getenv("BUMBLEBEE_LOCALE"),
		os.Getenv("LC_ALL"),
		os.Getenv("LC_MESSAGES"),
		os.Getenv("LANG"),
	}
	for _, candidate := range candidates {
		if normalized := NormalizeLocale(candidate); normalized != "" {
			return normalized
		}
	}
	return "en"
}

func NormalizeLocale(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	trimmed = strings.Split(trimmed, ".")[0]
	trimmed = strings.Split(trimmed, "@")[0]
	trimmed = strings.ReplaceAll(trimmed, "_", "-")

	parts := strings.Split(trimmed, "-")
	lang := strings.ToLower(parts[0])
	if !isValidLocaleToken(lang, true) {
		return ""
	}
	if len(parts) == 1 || parts[1] == "" {
		return lang
	}
	region := strings.ToUpper(parts[1])
	if !isValidLocaleToken(strings.ToLower(region), false) {
		return ""
	}
	return lang + "-" + region
}

func isValidLocaleToken(token string, lettersOnly bool) bool {
	if len(token) < 2 || len(token) > 8 {
		return false
	}
	for _, r := range token {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if !lettersOnly && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}

// SpokenSuccess returns the sentence read aloud after a command resolves or runs.
// Phrases may reference {value} and {delta}; a phrase whose placeholder has no
// parameter falls back to the description.
func (c Catalog) SpokenSuccess(id, description string, params map[string]int) string {
	phrase, ok := c.Spoken[id]
	if !ok || strings.TrimSpace(phrase) == "" {
		return description
	}
	for _, key := range []string{"value", "delta"} {
		placeholder := "{" + key + "}"
		if !strings.Contains(phrase, placeholder) {
			continue
		}
		n, ok := params[key]
		if !ok {
			return description
		}
		phrase = strings.ReplaceAll(phrase, placeholder, strconv.Itoa(n))
	}
	return phrase
}

// SpokenFailure is the fixed English sentence for every family and locale.
func (c Catalog) SpokenFailure(description string) string {
	return fmt.Sprintf("Failed to %s.", description)
}

func (c Catalog) DidYouMean(description string) string {
	return fmt.Sprintf(c.Prompts.DidYouMean, description)
}

func (c Catalog) AllowAction(description, command string) string {
	return fmt.Sprintf(c.Prompts.AllowAction, description, command)
}

func (c Catalog) Executing(description string) string {
	return fmt.Sprintf(c.Prompts.Executing, description)
}

func loadCommunityCatalog(locale string) (Catalog, bool) {
	configDir, err := appdirs.ConfigDir()
	if err != nil {
		return Catalog{}, false
	}

	normalized := NormalizeLocale(locale)
	if normalized == "" {
		return Catalog{}, false
	}
	lang := normalized
	if idx := strings.Index(lang, "-"); idx > 0 {
		lang = lang[:idx]
	}

	paths := []string{
		filepath.Join(configDir, "locales", normalized+".json"),
	}
	if lang != normalized {
		paths = append(paths, filepath.Join(configDir, "locales", lang+".json"))
	}

	for _, path := range paths {
		loaded, ok := loadCatalogFile(path)
		if ok {
			return loaded, true
		}
	}
	return Catalog{}, false
}

func loadCatalogFile(path string) (Catalog, bool) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, false
	}
	var catalog Catalog
	if err := json.Unmarshal(bytes, &catalog); err != nil {
		return Catalog{}, false
	}
	return catalog, true
}

// mergeCatalog overlays non-empty override entries on base. Format strings
// are only taken when they keep the same verb count as the base.
func mergeCatalog(base Catalog, override Catalog) Catalog {
	merged := base
	merged.Spoken = make(map[string]string, len(base.Spoken)+len(override.Spoken))
	for id, phrase := range base.Spoken {
		merged.Spoken[id] = phrase
	}
	for id, phrase := range override.Spoken {
		if trimmed := strings.TrimSpace(phrase); trimmed != "" {
			merged.Spoken[strings.TrimSpace(id)] = trimmed
		}
	}

	merged.Prompts.DidYouMean = mergeFormat(base.Prompts.DidYouMean, override.Prompts.DidYouMean)
	merged.Prompts.AllowAction = mergeFormat(base.Prompts.AllowAction, override.Prompts.AllowAction)
	merged.Prompts.ChooseTitle = mergeString(base.Prompts.ChooseTitle, override.Prompts.ChooseTitle)
	merged.Prompts.Executing = mergeFormat(base.Prompts.Executing, override.Prompts.Executing)

	merged.Live.Unavailable = mergeString(base.Live.Unavailable, override.Live.Unavailable)
	merged.Live.LimitReached = mergeString(base.Live.LimitReached, override.Live.LimitReached)
	return merged
}

func mergeString(base, override string) string {
	if trimmed := strings.TrimSpace(override); trimmed != "" {
		return trimmed
	}
	return base
}

func mergeFormat(base, override string) string {
	trimmed := strings.TrimSpace(override)
	if trimmed == "" {
		return base
	}
	if strings.Count(trimmed, "%s") != strings.Count(base, "%s") || strings.Count(trimmed, "%") != strings.Count(base, "%") {
		return base
	}
	return trimmed
}

func defaultEnglishCatalog() Catalog {
	return Catalog{
		Locale: "en",
		Spoken: map[string]string{
			"brightness_set":  "Setting brightness to {value} percent.",
			"brightness_up":   "Increasing brightness.",
			"brightness_down": "Decreasing brightness.",
			"brightness_half": "Setting brightness to fifty percent.",
			"volume_set":      "Setting the volume to {value} percent.",
			"volume_up":       "Turning the volume up.",
			"volume_down":     "Turning the volume down.",
			"volume_mute":     "Volume muted.",
			"system_shutdown": "Shutting down now.",
			"system_reboot":   "Rebooting now.",
			"system_suspend":  "Suspending now.",
			"system_lock":     "Locking the session.",
			"wifi_on":         "Turning Wi-Fi on.",
			"wifi_off":        "Turning Wi-Fi off.",
			"arch_update":     "Updating packages.",
		},
		Prompts: PromptCatalog{
			DidYouMean:  "Did you mean: %s?",
			AllowAction: "Allow action?\n\n%s\nCommand: %s",
			ChooseTitle: "Which one did you mean?",
			Executing:   "Executing: %s",
		},
		Live: LiveCatalog{
			Unavailable:  "Sorry, I couldn't fetch live information right now.",
			LimitReached: "Live data limit reached for today.",
		},
	}
}

func defaultHindiCatalog() Catalog {
	return Catalog{
		Locale: "hi",
		Spoken: map[string]string{
			"brightness_set":  "ब्राइटनेस {value} प्रतिशत पर सेट कर रहा हूँ।",
			"brightness_up":   "ब्राइटनेस बढ़ा रहा हूँ।",
			"brightness_down": "ब्राइटनेस घटा रहा हूँ।",
			"brightness_half": "ब्राइटनेस पचास प्रतिशत पर सेट कर रहा हूँ।",
			"volume_set":      "आवाज़ {value} प्रतिशत पर सेट कर रहा हूँ।",
			"volume_up":       "आवाज़ बढ़ा रहा हूँ।",
			"volume_down":     "आवाज़ घटा रहा हूँ।",
			"volume_mute":     "आवाज़ बंद कर दी।",
			"system_shutdown": "अभी शटडाउन हो रहा है।",
			"system_reboot":   "अभी रीबूट हो रहा है।",
			"system_suspend":  "अभी सस्पेंड हो रहा है।",
			"system_lock":     "सेशन लॉक कर रहा हूँ।",
			"wifi_on":         "वाई-फाई चालू कर रहा हूँ।",
			"wifi_off":        "वाई-फाई बंद कर रहा हूँ।",
			"arch_update":     "पैकेज अपडेट कर रहा हूँ।",
		},
		Prompts: PromptCatalog{
			DidYouMean:  "क्या आपका मतलब था: %s?",
			AllowAction: "क्या यह कार्य चलाएँ?\n\n%s\nकमांड: %s",
			ChooseTitle: "आपका मतलब कौन सा था?",
			Executing:   "चला रहा हूँ: %s",
		},
		Live: LiveCatalog{
			Unavailable:  "माफ़ कीजिए, अभी लाइव जानकारी नहीं मिल सकी।",
			LimitReached: "आज की लाइव जानकारी की सीमा पूरी हो गई।",
		},
	}
}
