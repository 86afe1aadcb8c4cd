package media

type AssetType string

const (
	AssetTypeFrame     AssetType = "frame"
	AssetTypeThumbnail AssetType = "thumbnail"
	AssetTypeMetadata  AssetType = "metadata"
)

// DefaultSubDirs places frames and metadata at the root of a video's
// directory and thumbnails one level below.
var DefaultSubDirs = map[AssetType]string{
	AssetTypeFrame:     "",
	AssetTypeThumbnail: "thumbnails",
	AssetTypeMetadata:  "",
}

// ImageProcessingOptions holds encoding parameters for a single write.
type ImageProcessingOptions struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}
