package assets

import "github.com/osgrid/metaviewer/internal/wire"

// DecodeTextureEntry decodes a texture entry from its raw UDP form, the
// representation object update records carry inline. HTTP
// asset responses that embed a texture entry in base64/LLSD form should
// call wire.DecodeTextureEntryBase64 directly.
func DecodeTextureEntry(raw []byte) (wire.TextureEntry, error) {
	return wire.DecodeTextureEntryRaw(raw)
}
