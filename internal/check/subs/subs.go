// Пакет subs — структурная проверка файлов субтитров SBV и SRT.
// Файл не разбирается полностью: проверяются размер и формат первой
// временной метки, этого достаточно, чтобы отсечь файлы не того формата.
package subs

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const (
	minFileSize = 20
	maxFileSize = 10 * 1024 * 1024
)

// CheckSBV проверяет файл субтитров в формате SBV:
//
//	0:00:00.000,0:00:07.000
//	>> TIM: So its 1976 I'm coming to the end
//
// При отказе возвращается человекочитаемая причина.
func CheckSBV(path string) (ok bool, reason string, err error) {
	lines, ok, reason, err := readLines(path, 2)
	if err != nil || !ok {
		return ok, reason, err
	}

	first := lines[0]
	if len(first) < 23 || len(first) > 30 {
		return false, "the time stamps are not in the right format", nil
	}
	if strings.Count(first, ":") != 4 || strings.Count(first, ",") != 1 {
		return false, "the time stamps are not in the right format", nil
	}

	return true, "", nil
}

// CheckSRT проверяет файл субтитров в формате SRT:
//
//	1
//	00:02:16,612 --> 00:02:19,376
//	Senator, we're making
func CheckSRT(path string) (ok bool, reason string, err error) {
	lines, ok, reason, err := readLines(path, 3)
	if err != nil || !ok {
		return ok, reason, err
	}

	if lines[0] != "1" {
		return false, "the first subtitle line has to be marked as 1", nil
	}
	second := lines[1]
	if !strings.Contains(second, " --> ") {
		return false, "the time stamps are not in the right format", nil
	}
	if len(second) < 25 || strings.Count(second, ":") < 4 || strings.Count(second, ",") < 2 {
		return false, "the time has to be specified in the hours:minutes:seconds,milliseconds (00:00:00,000) format", nil
	}

	return true, "", nil
}

// readLines проверяет размер файла и читает первые minLines строк.
func readLines(path string, minLines int) (lines []string, ok bool, reason string, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, false, "", fmt.Errorf("чтение атрибутов файла: %w", err)
	}
	if fi.Size() < minFileSize || fi.Size() > maxFileSize {
		return nil, false, "the file is too small or too big", nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, false, "", fmt.Errorf("открытие файла: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for len(lines) < minLines && sc.Scan() {
		lines = append(lines, strings.TrimSuffix(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, false, "", fmt.Errorf("чтение файла: %w", err)
	}
	if len(lines) < minLines {
		return nil, false, "we expect at least one subtitle line", nil
	}

	return lines, true, "", nil
}
