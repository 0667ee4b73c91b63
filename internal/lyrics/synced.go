package lyrics

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

var timestampRe = regexp.MustCompile(`^\[(\d{1,3}):(\d{2})(?:[.:](\d{1,3}))?\]`)

// Line 一行同步歌词
type Line struct {
	Time int64 // 毫秒
	Text string
}

// parseLine 解析 "[mm:ss.xx]text"，非时间戳行（空行、[ar:xx] 之类的标签）返回 ok=false
func parseLine(raw string) (Line, bool) {
	raw = strings.TrimRight(raw, "\r")
	match := timestampRe.FindStringSubmatch(raw)
	if match == nil {
		return Line{}, false
	}
	min, _ := strconv.ParseInt(match[1], 10, 64)
	sec, _ := strconv.ParseInt(match[2], 10, 64)
	var ms int64
	if frac := match[3]; frac != "" {
		ms, _ = strconv.ParseInt(frac, 10, 64)
		// .1 = 100ms, .49 = 490ms, .490 = 490ms
		switch len(frac) {
		case 1:
			ms *= 100
		case 2:
			ms *= 10
		}
	}
	// 时间戳后没有内容的行视为空文本
	text := strings.TrimSpace(raw[len(match[0]):])
	return Line{Time: (min*60+sec)*1000 + ms, Text: text}, true
}

// Parse 按原始顺序解析整份歌词，不排序
func Parse(doc string) []Line {
	var result []Line
	scanner := bufio.NewScanner(strings.NewReader(doc))
	for scanner.Scan() {
		if line, ok := parseLine(scanner.Text()); ok {
			result = append(result, line)
		}
	}
	return result
}

// LocateLine 返回 pos 时刻应显示的歌词行。
// 顺序扫描，记录最后一个时间戳 <= pos 的行，遇到第一个时间戳 > pos 的行即停止；
// pos 早于第一行或文档为空时返回空字符串。依赖文档本身按时间递增排列。
func LocateLine(pos int64, doc string) string {
	current := ""
	scanner := bufio.NewScanner(strings.NewReader(doc))
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if line.Time > pos {
			break
		}
		current = line.Text
	}
	return current
}
