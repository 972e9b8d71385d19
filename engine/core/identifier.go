package core

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// AssetID names an asset inside a container. Ids are unique per container.
type AssetID string

func (id AssetID) String() string {
	return string(id)
}

// dawnNamespace seeds the name-based UUIDs derived by ContentID.
var dawnNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/spaghettifunk/dawn"))

// NormalizeAssetID derives an asset id from a file path: the lower-case file
// stem, whitespace and dots replaced by '_', anything else that is not a
// letter, a digit, '_' or '-' dropped.
func NormalizeAssetID(path string) AssetID {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	// descriptors carry a double extension (texture.asset.toml)
	base = strings.TrimSuffix(base, ".asset")

	var b strings.Builder
	b.Grow(len(base))
	for _, r := range strings.ToLower(base) {
		switch {
		case unicode.IsSpace(r) || r == '.':
			b.WriteByte('_')
		case r == '_' || r == '-':
			b.WriteRune(r)
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		}
	}
	return AssetID(b.String())
}

// ContentID returns a deterministic UUID (version 5) for the given content.
// Equal inputs always produce the same identifier.
func ContentID(parts ...[]byte) uuid.UUID {
	var data []byte
	for _, p := range parts {
		data = append(data, p...)
	}
	return uuid.NewSHA1(dawnNamespace, data)
}
