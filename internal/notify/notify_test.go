package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"storefront/backend/internal/domain"
)

func TestLanguageNegotiation(t *testing.T) {
	l := NewLocalizer()

	cases := []struct {
		header string
		want   language.Tag
	}{
		{"", language.English},
		{"id-ID,id;q=0.9,en;q=0.8", language.Indonesian},
		{"en-US", language.English},
		{"fr-FR", language.English},
		{"not a header;;q=x", language.English},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, l.Language(tc.header), "header %q", tc.header)
	}
}

func TestMessageIsLocalized(t *testing.T) {
	l := NewLocalizer()

	assert.Equal(t, "Order 41 is now approved.", l.Message("en", KeyStatusUpdated, "41", "approved"))
	assert.Equal(t, "Pesanan 41 sekarang berstatus approved.", l.Message("id", KeyStatusUpdated, "41", "approved"))
}

func TestNotifyCarriesLevelAndID(t *testing.T) {
	l := NewLocalizer()

	n := l.Notify("id", domain.NotificationError, KeySessionExpired)
	assert.Equal(t, domain.NotificationError, n.Level)
	assert.True(t, strings.HasPrefix(n.ID, "ntf-"))
	assert.Contains(t, n.Message, "Sesi Anda")
}

func TestEveryKeyHasBothLanguages(t *testing.T) {
	en := translations[language.English]
	id := translations[language.Indonesian]
	assert.Equal(t, len(en), len(id))
	for key := range en {
		_, ok := id[key]
		assert.True(t, ok, "missing Indonesian text for %s", key)
	}
}
