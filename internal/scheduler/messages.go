package scheduler

import (
	"fmt"
	"strings"
)

const (
	lineFetched         = "`Fetching messages... Done!`"
	lineGenerating      = "`Your video is being generated...`"
	lineGeneratingDone  = "`Your video is being generated... Done!`"
	lineGeneratingFail  = "`Your video is being generated... Failed!`"
	lineUploading       = "`Uploading file to Discord...`"
	lineUploadingDone   = "`Uploading file to Discord... Done!`"
	lineUploadingFail   = "`Uploading file to Discord... Failed!`"
	lineExternal        = "`Trying to upload file to an external server...`"
	lineExternalDone    = "`Trying to upload file to an external server... Done!`"
	lineExternalFail    = "`Trying to upload file to an external server... Failed!`"
	defaultRetentionMsg = "_This video will be deleted in 48 hours_"

	maxReasonRunes = 300
)

func lines(parts ...string) string {
	return strings.Join(parts, "\n")
}

func queuedText(position int) string {
	return lines(lineFetched, fmt.Sprintf("`Position in the queue: #%d`", position))
}

func generatingText() string {
	return lines(lineFetched, lineGenerating)
}

func generationFailedText() string {
	return lines(lineFetched, lineGeneratingFail)
}

func uploadingText() string {
	return lines(lineFetched, lineGeneratingDone, lineUploading)
}

func uploadedText() string {
	return lines(lineFetched, lineGeneratingDone, lineUploadingDone)
}

func uploadFailedText() string {
	return lines(lineFetched, lineGeneratingDone, lineUploadingFail)
}

func tooBigLine(size int64) string {
	return fmt.Sprintf("`Video file too big for you server! %.2f MB`", float64(size)/1000000)
}

func externalText(size int64, status string) string {
	return lines(lineFetched, lineGeneratingDone, tooBigLine(size), status)
}

// renderFailedReply tells the requester why the render failed, shortened to
// fit an embed comfortably.
func renderFailedReply(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "Failed to generate the video."
	}
	if r := []rune(reason); len(r) > maxReasonRunes {
		reason = string(r[:maxReasonRunes]) + "..."
	}
	return "Failed to generate the video: " + reason
}
