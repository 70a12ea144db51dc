package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateImageType(t *testing.T) {
	assert.True(t, ValidateImageType("image/png", "x.bin"))
	assert.True(t, ValidateImageType("", "photo.JPG"))
	assert.False(t, ValidateImageType("video/mp4", "clip.mp4"))
	assert.False(t, ValidateImageType("", "notes.txt"))
}

func TestEventImageKey(t *testing.T) {
	org := int64(7)
	key := EventImageKey(&org, 42, "Cartaz.PNG")
	assert.True(t, strings.HasPrefix(key, "events/org-7/42/"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)

	assert.True(t, strings.HasPrefix(EventImageKey(nil, 0, "a.jpg"), "events/global/new/"))
	assert.False(t, strings.Contains(EventImageKey(&org, 1, "../../etc/passwd"), ".."))
}

func TestOwnsImageKey(t *testing.T) {
	seven, nine := int64(7), int64(9)

	assert.True(t, OwnsImageKey(&seven, EventImageKey(&seven, 0, "a.png")))
	assert.False(t, OwnsImageKey(&seven, EventImageKey(&nine, 2, "a.png")))
	assert.False(t, OwnsImageKey(&seven, "events/org-70/1/a.png"))
	assert.False(t, OwnsImageKey(&seven, "events/org-7/../org-9/2/a.png"))
	assert.False(t, OwnsImageKey(nil, "events/org-7/1/a.png"))
	assert.True(t, OwnsImageKey(nil, "events/global/new/a.png"))
}

func TestPublicURLRoundTrip(t *testing.T) {
	s := &S3{cfg: S3Config{Region: "sa-east-1", ImagesBucket: "imgs"}}

	url := s.PublicObjectURL("events/1/a.png")
	assert.Equal(t, "https://imgs.s3.sa-east-1.amazonaws.com/events/1/a.png", url)

	key, ok := s.KeyFromURL(url)
	assert.True(t, ok)
	assert.Equal(t, "events/1/a.png", key)

	_, ok = s.KeyFromURL("https://elsewhere.example.com/a.png")
	assert.False(t, ok)
}

func TestPresignExpireDefault(t *testing.T) {
	assert.Equal(t, 15*time.Minute, (&S3{}).PresignExpire())
	assert.Equal(t, 5*time.Minute, (&S3{cfg: S3Config{PresignExpireMinutes: 5}}).PresignExpire())
}
