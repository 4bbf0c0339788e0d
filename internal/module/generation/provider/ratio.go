package provider

// Aspect-ratio identifiers travel in the application's own vocabulary and
// are translated per provider on the way out. Unmapped ratios fall back to
// the provider default instead of failing the request.

const (
	defaultPredictionRatio = "1:1"
	defaultVideoRatio      = "16:9"
)

// predictionRatios maps internal ratios onto the predictions provider's
// accepted strings.
var predictionRatios = map[string]string{
	"1:1":  "1:1",
	"4:3":  "4:3",
	"3:4":  "3:4",
	"16:9": "16:9",
	"9:16": "9:16",
	"free": "match_input_image",
}

// videoRatios maps internal ratios onto the video provider's accepted
// strings. The video provider only renders landscape and portrait.
var videoRatios = map[string]string{
	"16:9": "1280:720",
	"9:16": "720:1280",
	"1:1":  "960:960",
}

func predictionRatio(internal string) string {
	if mapped, ok := predictionRatios[internal]; ok {
		return mapped
	}
	return defaultPredictionRatio
}

func videoRatio(internal string) string {
	if mapped, ok := videoRatios[internal]; ok {
		return mapped
	}
	return videoRatios[defaultVideoRatio]
}
