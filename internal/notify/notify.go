// Package notify renders user-visible notifications in the caller's language.
package notify

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/xid"
)

type Key string

const (
	KeySessionExpired   Key = "session_expired"
	KeyNotFound         Key = "not_found"
	KeyUnavailable      Key = "backend_unavailable"
	KeyMalformed        Key = "backend_malformed"
	KeyInvalidRequest   Key = "invalid_request"
	KeyStatusUpdated    Key = "status_updated"
	KeyStatusFailed     Key = "status_update_failed"
	KeyStatusInProgress Key = "status_update_in_progress"
	KeyProductCreated   Key = "product_created"
	KeyProductUpdated   Key = "product_updated"
	KeyProductDeleted   Key = "product_deleted"
	KeyExportFailed     Key = "export_failed"
	KeyInternal         Key = "internal_error"
)

var supported = []language.Tag{language.English, language.Indonesian}

var translations = map[language.Tag]map[Key]string{
	language.English: {
		KeySessionExpired:   "Your session has expired. Please sign in again.",
		KeyNotFound:         "The requested item could not be found.",
		KeyUnavailable:      "The store service is unavailable. Please try again shortly.",
		KeyMalformed:        "The store service returned data we could not read.",
		KeyInvalidRequest:   "The request is invalid: %s",
		KeyStatusUpdated:    "Order %s is now %s.",
		KeyStatusFailed:     "Could not update order %s. Its status was left unchanged.",
		KeyStatusInProgress: "Order %s already has an update in progress.",
		KeyProductCreated:   "Product %s was created.",
		KeyProductUpdated:   "Product %s was updated.",
		KeyProductDeleted:   "The product was deleted.",
		KeyExportFailed:     "The export could not be generated.",
		KeyInternal:         "Something went wrong. Please try again.",
	},
	language.Indonesian: {
		KeySessionExpired:   "Sesi Anda telah berakhir. Silakan masuk kembali.",
		KeyNotFound:         "Data yang diminta tidak ditemukan.",
		KeyUnavailable:      "Layanan toko sedang tidak tersedia. Silakan coba lagi nanti.",
		KeyMalformed:        "Layanan toko mengirim data yang tidak dapat dibaca.",
		KeyInvalidRequest:   "Permintaan tidak valid: %s",
		KeyStatusUpdated:    "Pesanan %s sekarang berstatus %s.",
		KeyStatusFailed:     "Gagal memperbarui pesanan %s. Statusnya tidak berubah.",
		KeyStatusInProgress: "Pesanan %s sedang dalam proses pembaruan.",
		KeyProductCreated:   "Produk %s berhasil dibuat.",
		KeyProductUpdated:   "Produk %s berhasil diperbarui.",
		KeyProductDeleted:   "Produk berhasil dihapus.",
		KeyExportFailed:     "Ekspor tidak dapat dibuat.",
		KeyInternal:         "Terjadi kesalahan. Silakan coba lagi.",
	},
}

type Localizer struct {
	catalog *catalog.Builder
	matcher language.Matcher
}

func NewLocalizer() *Localizer {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, messages := range translations {
		for key, msg := range messages {
			_ = b.SetString(tag, string(key), msg)
		}
	}
	return &Localizer{catalog: b, matcher: language.NewMatcher(supported)}
}

// Language picks the best supported language for an Accept-Language header,
// defaulting to English.
func (l *Localizer) Language(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, confidence := l.matcher.Match(tags...)
	if confidence == language.No {
		return language.English
	}
	return supported[idx]
}

func (l *Localizer) Message(acceptLanguage string, key Key, args ...any) string {
	p := message.NewPrinter(l.Language(acceptLanguage), message.Catalog(l.catalog))
	return p.Sprintf(string(key), args...)
}

func (l *Localizer) Notify(acceptLanguage string, level string, key Key, args ...any) domain.Notification {
	return domain.Notification{
		ID:      xid.New("ntf"),
		Level:   level,
		Message: l.Message(acceptLanguage, key, args...),
	}
}
