package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestParseTasksRecognizedVerbs(t *testing.T) {
	tests := []struct {
		segment string
		verb    Verb
		arg     string
	}{
		{"chung bạn khoẻ không?", VerbChat, "bạn khoẻ không?"},
		{"thời gian thực tin tức hôm nay", VerbRealtimeSearch, "tin tức hôm nay"},
		{"mở chrome", VerbOpenApp, "chrome"},
		{"đóng notepad", VerbCloseApp, "notepad"},
		{"phát Nấu ăn cho em", VerbPlayMedia, "Nấu ăn cho em"},
		{"nội dung đơn xin nghỉ phép", VerbWriteContent, "đơn xin nghỉ phép"},
		{"tìm google thời tiết hà nội", VerbSearchWeb, "thời tiết hà nội"},
		{"tìm youtube nhạc trịnh", VerbSearchVideo, "nhạc trịnh"},
		{"hệ thống tắt tiếng", VerbSystemCommand, "tắt tiếng"},
		{"gọi zalo mẹ", VerbCallContact, "mẹ"},
		{"phân tích màn hình bạn thấy gì", VerbAnalyzeScreen, "bạn thấy gì"},
		{"nhắc nhở 9:00pm ngày mai họp", VerbSetReminder, "9:00pm ngày mai họp"},
		{"thoát", VerbExit, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.verb), func(t *testing.T) {
			tasks := parseTasks(tt.segment, tt.segment)
			assert.Len(t, tasks, 1)
			assert.Equal(t, tt.verb, tasks[0].Verb)
			assert.Equal(t, tt.arg, tasks[0].Argument)
			assert.Equal(t, tt.segment, tasks[0].Raw)
		})
	}
}

func TestParseTasksMultiSegmentOrder(t *testing.T) {
	got := parseTasks("mở chrome, nhắc nhở 9:00pm ngày mai họp", "mở chrome và nhắc tôi 9h tối mai họp")
	want := []Task{
		{Verb: VerbOpenApp, Argument: "chrome", Raw: "mở chrome"},
		{Verb: VerbSetReminder, Argument: "9:00pm ngày mai họp", Raw: "nhắc nhở 9:00pm ngày mai họp"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseTasks mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTasksUnrecognizedSegment(t *testing.T) {
	// An off-vocabulary segment is preserved as an unknown-fallback task,
	// never dropped.
	got := parseTasks("dịch sang tiếng anh xin chào", "dịch sang tiếng anh xin chào")
	assert.Len(t, got, 1)
	assert.Equal(t, VerbUnknown, got[0].Verb)
	assert.Equal(t, "dịch sang tiếng anh xin chào", got[0].Argument)
}

func TestParseTasksFallbackOnEmptyOutput(t *testing.T) {
	got := parseTasks("", "thời tiết hôm nay thế nào")
	want := []Task{{
		Verb:     VerbChat,
		Argument: "thời tiết hôm nay thế nào",
		Raw:      "thời tiết hôm nay thế nào",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fallback mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTasksNonEmptyInvariant(t *testing.T) {
	// For any non-empty query the parser yields at least one task.
	outputs := []string{"", "   ", ", , ,", "???"}
	for _, out := range outputs {
		tasks := parseTasks(out, "xin chào")
		assert.NotEmpty(t, tasks, "output %q", out)
	}
}

func TestParseTasksEmptyQuery(t *testing.T) {
	assert.Empty(t, parseTasks("", ""))
	assert.Empty(t, parseTasks("  ", "   "))
}

func TestParseTasksLongestKeywordWins(t *testing.T) {
	// "tìm google" must not decode as a shorter keyword sharing a prefix,
	// and a bare keyword with trailing content stays one task.
	tasks := parseTasks("tìm google golang", "")
	assert.Equal(t, VerbSearchWeb, tasks[0].Verb)
	assert.Equal(t, "golang", tasks[0].Argument)
}
