// Package i18n resolves the request culture and maps message keys to
// user-facing text.
package i18n

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys
const (
	InvalidLinkError        = "InvalidLinkError"
	GeneralDownloadError    = "GeneralDownloadError"
	DownloadStartingMessage = "DownloadStartingMessage"
	RateLimitError          = "RateLimitError"
)

// CultureQueryParam selects the culture explicitly, e.g. ?culture=vi
const CultureQueryParam = "culture"

const contextKey = "i18n_tag"

var translations = map[string]map[string]string{
	"en": {
		InvalidLinkError:        "The link is invalid or not supported. Please check it and try again.",
		GeneralDownloadError:    "Something went wrong while processing your request. Please try again later.",
		DownloadStartingMessage: "Your download is starting...",
		RateLimitError:          "Too many requests, please try again in a minute.",
	},
	"vi": {
		InvalidLinkError:        "Liên kết không hợp lệ hoặc không được hỗ trợ. Vui lòng kiểm tra và thử lại.",
		GeneralDownloadError:    "Đã xảy ra lỗi khi xử lý yêu cầu. Vui lòng thử lại sau.",
		DownloadStartingMessage: "Đang bắt đầu tải xuống...",
		RateLimitError:          "Quá nhiều yêu cầu, vui lòng thử lại sau 1 phút.",
	},
	"id": {
		InvalidLinkError:        "Tautan tidak valid atau tidak didukung. Silakan periksa dan coba lagi.",
		GeneralDownloadError:    "Terjadi kesalahan saat memproses permintaan Anda. Silakan coba lagi nanti.",
		DownloadStartingMessage: "Unduhan Anda sedang dimulai...",
		RateLimitError:          "Terlalu banyak permintaan, silakan coba lagi dalam satu menit.",
	},
}

// Localizer picks a supported culture per request and renders messages in it
type Localizer struct {
	catalog   *catalog.Builder
	matcher   language.Matcher
	supported []language.Tag
}

// New builds a Localizer. The default culture is always supported and is
// used when nothing in the request matches.
func New(defaultCulture string, supportedCultures []string) (*Localizer, error) {
	def, err := language.Parse(defaultCulture)
	if err != nil {
		return nil, fmt.Errorf("invalid default culture %q: %w", defaultCulture, err)
	}

	supported := []language.Tag{def}
	for _, name := range supportedCultures {
		tag, err := language.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("invalid supported culture %q: %w", name, err)
		}
		if tag != def {
			supported = append(supported, tag)
		}
	}

	// cultures without their own translations reuse the default culture's text
	defaultTexts, ok := translations[baseOf(def)]
	if !ok {
		defaultTexts = translations["en"]
	}

	b := catalog.NewBuilder(catalog.Fallback(def))
	for _, tag := range supported {
		texts, ok := translations[baseOf(tag)]
		if !ok {
			texts = defaultTexts
		}
		for key, text := range texts {
			if err := b.SetString(tag, key, text); err != nil {
				return nil, err
			}
		}
	}

	return &Localizer{
		catalog:   b,
		matcher:   language.NewMatcher(supported),
		supported: supported,
	}, nil
}

// Match returns the supported culture closest to the explicit culture or,
// failing that, the Accept-Language header
func (l *Localizer) Match(culture, acceptLanguage string) language.Tag {
	var prefs []language.Tag
	if culture != "" {
		if tag, err := language.Parse(culture); err == nil {
			prefs = append(prefs, tag)
		}
	}
	if acceptLanguage != "" {
		if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil {
			prefs = append(prefs, tags...)
		}
	}

	_, index, confidence := l.matcher.Match(prefs...)
	if confidence == language.No {
		return l.supported[0]
	}
	return l.supported[index]
}

// Text renders key in the given culture
func (l *Localizer) Text(tag language.Tag, key string) string {
	return message.NewPrinter(tag, message.Catalog(l.catalog)).Sprintf(key)
}

// Middleware stores the request culture in the gin context
func (l *Localizer) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tag := l.Match(c.Query(CultureQueryParam), c.GetHeader("Accept-Language"))
		c.Set(contextKey, tag)
		c.Header("Content-Language", tag.String())
		c.Next()
	}
}

// T renders key in the culture chosen for the request
func (l *Localizer) T(c *gin.Context, key string) string {
	tag := l.supported[0]
	if v, ok := c.Get(contextKey); ok {
		if t, ok := v.(language.Tag); ok {
			tag = t
		}
	}
	return l.Text(tag, key)
}

func baseOf(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}
