package commands

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/plugin"
)

var languageCodes = map[string]string{
	"indonesia": "id", "indo": "id", "indonesian": "id", "id": "id",
	"english": "en", "inggris": "en", "ing": "en", "en": "en",
	"japanese": "ja", "jepang": "ja", "jp": "ja",
	"korean": "ko", "korea": "ko", "ko": "ko",
	"chinese": "zh-CN", "china": "zh-CN", "mandarin": "zh-CN", "cn": "zh-CN",
	"arabic": "ar", "arab": "ar", "ar": "ar",
	"spanish": "es", "spanyol": "es", "es": "es",
	"french": "fr", "prancis": "fr", "fr": "fr",
	"german": "de", "jerman": "de", "de": "de",
	"russian": "ru", "rusia": "ru", "ru": "ru",
	"javanese": "jv", "jawa": "jv", "jv": "jv",
	"sundanese": "su", "sunda": "su", "su": "su",
}

// LanguageCode maps a language name or alias to its code. Unknown input is
// returned unchanged.
func LanguageCode(lang string) string {
	if code, ok := languageCodes[strings.ToLower(lang)]; ok {
		return code
	}
	return lang
}

type translateHandler struct {
	deps *Deps
}

func (h *translateHandler) Execute(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext) error {
	p := ec.UsedPrefix
	trigger := cmd.Trigger()

	if cmd.Quoted == nil {
		return reply(ctx, cmd, ec, fmt.Sprintf("❌ Please reply to a message containing text to translate.\n\n"+
			"Usage:\n• Reply to a message -> %s%s <language_code>\n\n"+
			"Example:\n• %st id (Translate to Indonesian)\n• %st en (Translate to English)", p, trigger, p, p))
	}

	text := strings.TrimSpace(cmd.Quoted.Text)
	if text == "" {
		return reply(ctx, cmd, ec, "❌ The replied message does not contain any text to translate.")
	}

	args := cmd.Args()
	if len(args) == 0 {
		return reply(ctx, cmd, ec, fmt.Sprintf("❌ Please specify the target language code.\n\n"+
			"Example:\n• %[1]st id\n• %[1]st en\n• %[1]st ja", p))
	}
	target := LanguageCode(args[0])

	if err := reply(ctx, cmd, ec, "⏳ Translating..."); err != nil {
		return err
	}

	result, err := h.translate(ctx, text, target)
	if err != nil {
		return fail(ctx, cmd, ec, "Translation failed", err)
	}

	return reply(ctx, cmd, ec, fmt.Sprintf("🌍 *TRANSLATION*\n\n📝 *Original:* %s\n🔤 *To:* %s\n\n✨ *Result:*\n%s",
		text, strings.ToUpper(target), result))
}

func (h *translateHandler) translate(ctx context.Context, text, lang string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", "auto")
	q.Set("tl", lang)
	q.Set("dt", "t")
	q.Set("q", text)

	body, err := fetch(ctx, h.deps.HTTP, h.deps.TranslateURL+"?"+q.Encode())
	if err != nil {
		return "", err
	}
	return parseTranslation(body)
}

// parseTranslation joins the translated segments of a gtx response, which
// is a nested array whose first element lists [translated, original, ...]
// pairs.
func parseTranslation(body []byte) (string, error) {
	segments := gjson.GetBytes(body, "0")
	if !segments.IsArray() {
		return "", errors.New("invalid response from translate service")
	}

	var b strings.Builder
	segments.ForEach(func(_, seg gjson.Result) bool {
		b.WriteString(seg.Get("0").String())
		return true
	})

	if b.Len() == 0 {
		return "", errors.New("empty translation")
	}
	return b.String(), nil
}
