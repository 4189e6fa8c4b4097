// Package aixm はAIXM 5.1.1 の timeInterval/Timesheet フラグメントを扱う。
// 変換結果のXML文字列を構造化レコードに読み戻し、不変条件を検証する。
package aixm

import (
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Namespace はAIXM 5.1.1 の名前空間URI。
const Namespace = "http://www.aixm.aero/schema/5.1.1"

// TimeReferenceUTC は timeReference に常に設定される値。
const TimeReferenceUTC = "UTC"

// 通年スケジュールのデフォルト日付範囲。
const (
	DefaultStartDate = "01-01"
	DefaultEndDate   = "31-12"
)

// ExcludedHoliday は祝日除外を示す excluded の値。
const ExcludedHoliday = "HOLIDAY"

// 終日運用を表す時刻の組。
const (
	FullDayStart = "00:00"
	FullDayEnd   = "24:00"
)

// Day は Timesheet の day 要素の値（閉じた列挙）。
type Day string

const (
	DayWorkDay  Day = "WORK_DAY"
	DayWeekend  Day = "WEEKEND"
	DayEveryDay Day = "EVERY_DAY"
	DayMon      Day = "MON"
	DayTue      Day = "TUE"
	DayWed      Day = "WED"
	DayThu      Day = "THU"
	DayFri      Day = "FRI"
	DaySat      Day = "SAT"
	DaySun      Day = "SUN"
)

var validDays = map[Day]bool{
	DayWorkDay: true, DayWeekend: true, DayEveryDay: true,
	DayMon: true, DayTue: true, DayWed: true, DayThu: true,
	DayFri: true, DaySat: true, DaySun: true,
}

// Valid は day が定義済みの分類のいずれかであるかを返す。
func (d Day) Valid() bool {
	return validDays[d]
}

// Timesheet は1つの適用期間（日付範囲・曜日分類・時刻範囲）を表す。
type Timesheet struct {
	TimeReference string `xml:"timeReference"`
	StartDate     string `xml:"startDate"`
	EndDate       string `xml:"endDate"`
	Day           Day    `xml:"day"`
	StartTime     string `xml:"startTime"`
	EndTime       string `xml:"endTime"`
	Excluded      string `xml:"excluded,omitempty"`
}

// TimeInterval は <aixm:timeInterval> 要素1つ分のレコード。
type TimeInterval struct {
	Timesheet Timesheet `xml:"Timesheet"`

	// dayCount はフラグメント中の day 要素の数。ParseFragment のみが設定する。
	dayCount int
}

// fragmentRoot はフラグメントを読み込むための仮のルート要素。
// day 要素の重複を検出できるよう、読み込み時は day を全件保持する。
type fragmentRoot struct {
	Intervals []struct {
		Timesheet struct {
			TimeReference string   `xml:"timeReference"`
			StartDate     string   `xml:"startDate"`
			EndDate       string   `xml:"endDate"`
			Days          []string `xml:"day"`
			StartTime     string   `xml:"startTime"`
			EndTime       string   `xml:"endTime"`
			Excluded      string   `xml:"excluded"`
		} `xml:"Timesheet"`
	} `xml:"timeInterval"`
}

var (
	timePattern = regexp.MustCompile(`^([01]\d|2[0-4]):([0-5]\d)$`)
	datePattern = regexp.MustCompile(`^(0[1-9]|[12]\d|3[01])-(0[1-9]|1[0-2])$`)
)

// ErrEmptyFragment はフラグメントに timeInterval が1件も含まれない場合のエラー。
var ErrEmptyFragment = errors.New("aixm: fragment contains no timeInterval elements")

// ParseFragment は timeInterval 要素が並んだフラグメントを順序を保ってレコード列に変換する。
// aixm: 接頭辞の有無は問わない。
func ParseFragment(fragment string) ([]TimeInterval, error) {
	wrapped := `<fragment xmlns:aixm="` + Namespace + `">` + fragment + `</fragment>`

	var root fragmentRoot
	if err := xml.Unmarshal([]byte(wrapped), &root); err != nil {
		return nil, fmt.Errorf("aixm: failed to parse fragment: %w", err)
	}
	if len(root.Intervals) == 0 {
		return nil, ErrEmptyFragment
	}

	intervals := make([]TimeInterval, 0, len(root.Intervals))
	for _, raw := range root.Intervals {
		ts := raw.Timesheet
		ti := TimeInterval{
			Timesheet: Timesheet{
				TimeReference: strings.TrimSpace(ts.TimeReference),
				StartDate:     strings.TrimSpace(ts.StartDate),
				EndDate:       strings.TrimSpace(ts.EndDate),
				StartTime:     strings.TrimSpace(ts.StartTime),
				EndTime:       strings.TrimSpace(ts.EndTime),
				Excluded:      strings.TrimSpace(ts.Excluded),
			},
			dayCount: len(ts.Days),
		}
		if len(ts.Days) > 0 {
			ti.Timesheet.Day = Day(strings.TrimSpace(ts.Days[0]))
		}
		intervals = append(intervals, ti)
	}

	return intervals, nil
}

// Validate は Timesheet の不変条件に加え、day 要素がちょうど1つであることを検証する。
// day 要素の数は ParseFragment で読み込んだレコードでのみ検査される。
func (ti TimeInterval) Validate() error {
	var errs []error
	if ti.dayCount > 1 {
		errs = append(errs, fmt.Errorf("exactly one day classification expected, got %d", ti.dayCount))
	}
	if err := ti.Timesheet.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// IsFullDay は 00:00–24:00 の終日運用かどうかを返す。
func (t Timesheet) IsFullDay() bool {
	return t.StartTime == FullDayStart && t.EndTime == FullDayEnd
}

// Validate は Timesheet の不変条件を検証し、違反をまとめたエラーを返す。
// 違反がなければnilを返す。
func (t Timesheet) Validate() error {
	var errs []error

	if t.TimeReference != TimeReferenceUTC {
		errs = append(errs, fmt.Errorf("timeReference must be %s, got %q", TimeReferenceUTC, t.TimeReference))
	}
	if !datePattern.MatchString(t.StartDate) {
		errs = append(errs, fmt.Errorf("startDate must be DD-MM, got %q", t.StartDate))
	}
	if !datePattern.MatchString(t.EndDate) {
		errs = append(errs, fmt.Errorf("endDate must be DD-MM, got %q", t.EndDate))
	}
	if !t.Day.Valid() {
		errs = append(errs, fmt.Errorf("unknown day classification %q", t.Day))
	}

	startOK := timePattern.MatchString(t.StartTime) && minutes(t.StartTime) < 24*60
	endOK := timePattern.MatchString(t.EndTime) && minutes(t.EndTime) <= 24*60
	if !startOK {
		errs = append(errs, fmt.Errorf("startTime must be HH:MM, got %q", t.StartTime))
	}
	if !endOK {
		errs = append(errs, fmt.Errorf("endTime must be HH:MM, got %q", t.EndTime))
	}
	// HH:MM のゼロ埋め形式なので文字列比較で時刻順になる
	if startOK && endOK && !t.IsFullDay() && t.StartTime >= t.EndTime {
		errs = append(errs, fmt.Errorf("startTime %s must be before endTime %s", t.StartTime, t.EndTime))
	}

	return errors.Join(errs...)
}

// ValidateAll は全レコードを検証し、レコード番号付きの違反をまとめて返す。
func ValidateAll(intervals []TimeInterval) error {
	var errs []error
	for i, ti := range intervals {
		if err := ti.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("interval %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

// minutes は HH:MM を0時からの分数に変換する。形式は呼び出し側で検証済みであること。
func minutes(hhmm string) int {
	return int(hhmm[0]-'0')*600 + int(hhmm[1]-'0')*60 + int(hhmm[3]-'0')*10 + int(hhmm[4]-'0')
}
