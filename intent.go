package main

import (
	"sort"
	"strings"
)

// Verb is one classified kind of user intent.
type Verb string

const (
	VerbChat           Verb = "chat"
	VerbRealtimeSearch Verb = "realtime-search"
	VerbOpenApp        Verb = "open-app"
	VerbCloseApp       Verb = "close-app"
	VerbPlayMedia      Verb = "play-media"
	VerbWriteContent   Verb = "write-content"
	VerbSearchWeb      Verb = "search-web"
	VerbSearchVideo    Verb = "search-video"
	VerbSystemCommand  Verb = "system-command"
	VerbCallContact    Verb = "call-contact"
	VerbAnalyzeScreen  Verb = "analyze-screen"
	VerbSetReminder    Verb = "set-reminder"
	VerbExit           Verb = "exit"
	VerbNoop           Verb = "noop"
	VerbUnknown        Verb = "unknown-fallback"
)

// verbKeywords maps the classifier's Vietnamese command keywords to verbs.
// The decision model is prompted to emit exactly these prefixes.
var verbKeywords = map[string]Verb{
	"chung":              VerbChat,
	"thời gian thực":     VerbRealtimeSearch,
	"mở":                 VerbOpenApp,
	"đóng":               VerbCloseApp,
	"phát":               VerbPlayMedia,
	"nội dung":           VerbWriteContent,
	"tìm google":         VerbSearchWeb,
	"tìm youtube":        VerbSearchVideo,
	"hệ thống":           VerbSystemCommand,
	"gọi zalo":           VerbCallContact,
	"phân tích màn hình": VerbAnalyzeScreen,
	"nhắc nhở":           VerbSetReminder,
	"thoát":              VerbExit,
}

// keywordsByLength is verbKeywords' keys, longest first, so that
// "tìm google ..." never matches a shorter keyword it happens to share
// a prefix with.
var keywordsByLength = func() []string {
	ks := make([]string, 0, len(verbKeywords))
	for k := range verbKeywords {
		ks = append(ks, k)
	}
	sort.Slice(ks, func(i, j int) bool { return len(ks[i]) > len(ks[j]) })
	return ks
}()

// Task is one unit of classified user intent. Immutable once parsed.
type Task struct {
	Verb     Verb   `json:"verb"`
	Argument string `json:"argument"`
	Raw      string `json:"raw"`
}

// parseTasks turns raw classifier output into an ordered task list.
//
// The classifier emits comma-separated commands like
// "mở chrome, nhắc nhở 9:00pm ngày mai họp". Each segment is decoded
// against the closed keyword set; a segment matching no keyword becomes
// an unknown-fallback task carrying the full segment, so classifier
// drift never silently loses user input. If nothing at all survives and
// the original query is non-empty, a single chat task wrapping the query
// is synthesized.
func parseTasks(classifierOutput, originalQuery string) []Task {
	var tasks []Task
	for _, seg := range strings.Split(classifierOutput, ", ") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		tasks = append(tasks, decodeSegment(seg))
	}
	if len(tasks) == 0 && strings.TrimSpace(originalQuery) != "" {
		tasks = append(tasks, Task{
			Verb:     VerbChat,
			Argument: originalQuery,
			Raw:      originalQuery,
		})
	}
	return tasks
}

// decodeSegment matches one segment against the keyword set. A segment
// matches a keyword if it equals it exactly or starts with keyword+" ";
// the remainder becomes the argument.
func decodeSegment(seg string) Task {
	for _, kw := range keywordsByLength {
		if seg == kw {
			return Task{Verb: verbKeywords[kw], Raw: seg}
		}
		if strings.HasPrefix(seg, kw+" ") {
			return Task{
				Verb:     verbKeywords[kw],
				Argument: strings.TrimSpace(seg[len(kw)+1:]),
				Raw:      seg,
			}
		}
	}
	return Task{Verb: VerbUnknown, Argument: seg, Raw: seg}
}
