// Package prompt は言語モデルに渡す固定の変換指示テンプレートを保持する。
//
// テンプレートは出力文法（timeInterval/Timesheet のみ）、曜日・時刻の正規化規則、
// 季節と祝日の扱い、および4つの作業例で構成される。
// スケジュール本文は末尾に追記される。
package prompt

import (
	"strconv"
	"strings"
)

// Example はモデルの出力を固定するための作業例。
type Example struct {
	Title  string
	Input  string
	Output string
}

// instructions は作業例より前の規則部分。
const instructions = `You are an expert aeronautical information specialist tasked with converting natural language schedule descriptions into standardized AIXM 5.1.1 XML format.

## CONVERSION TASK
Convert the provided aeronautical service schedule text into properly formatted AIXM 5.1.1 XML timeInterval elements.

## AIXM 5.1.1 STRUCTURE
Each distinct schedule period must be represented as a separate <aixm:timeInterval> element containing a <aixm:Timesheet> with the following components:
- <aixm:timeReference>: Always use "UTC"
- <aixm:startDate>: Beginning date in DD-MM format (e.g., "01-01" for January 1)
- <aixm:endDate>: Ending date in DD-MM format (e.g., "31-12" for December 31)
- <aixm:day>: Day specification (see standardized values below)
- <aixm:startTime>: Start time in 24-hour format with colon (e.g., "08:00")
- <aixm:endTime>: End time in 24-hour format with colon (e.g., "18:00")
- <aixm:excluded>: Optional, only "HOLIDAY" when the schedule does not apply on holidays

## STANDARDIZED DAY VALUES
- Use "WORK_DAY" for Monday through Friday (MON-FRI)
- Use "WEEKEND" for Saturday and Sunday (SAT-SUN)
- Use "EVERY_DAY" for all days of the week
- Use individual day codes (MON, TUE, WED, THU, FRI, SAT, SUN) for specific days
- For any other single day or subset of days, create a separate timeInterval element for each individual day

## TIME FORMAT RULES
- Always use 24-hour format with a colon separator (e.g., "08:00" not "0800")
- For 24-hour service ("H24", "24 hours"), use startTime="00:00" and endTime="24:00"
- Convert any time without a colon (e.g., "0800") to the proper format ("08:00")

## SEASONAL VARIATIONS
- Without a season, use startDate="01-01" and endDate="31-12"
- Winter season spans NOV-MAR (startDate="01-11", endDate="31-03")
- Summer season spans APR-OCT (startDate="01-04", endDate="31-10")
- Create a separate timeInterval element for each season and day-group combination; never merge them

## HOLIDAYS AND EXCEPTIONS
- For "except holidays" or similar wording, add <aixm:excluded>HOLIDAY</aixm:excluded> to the affected Timesheet instead of creating a separate element
- If specific holiday dates are given, use those literal dates for the exception

## OUTPUT REQUIREMENTS
- Do NOT include XML declaration (<?xml version="1.0"?>)
- Do NOT include namespace declarations or root elements
- Do NOT include <aixm:PropertiesWithSchedule> elements
- Do NOT wrap the output in Markdown code fences
- ONLY output the raw <aixm:timeInterval> elements
- Ensure proper indentation with 2 spaces per level
- Maintain consistent formatting across all elements
`

// Examples はテンプレートに埋め込む作業例。
// 平日＋土曜、終日運用、2季節の混在、祝日除外の4パターンを網羅する。
var Examples = []Example{
	{
		Title: "Basic weekday and Saturday schedule",
		Input: "MON-FRI: 0800-1800, SAT: 0800-1200",
		Output: timesheet("01-01", "31-12", "WORK_DAY", "08:00", "18:00", "") +
			timesheet("01-01", "31-12", "SAT", "08:00", "12:00", ""),
	},
	{
		Title:  "24-hour service",
		Input:  "H24",
		Output: timesheet("01-01", "31-12", "EVERY_DAY", "00:00", "24:00", ""),
	},
	{
		Title: "Seasonal variation",
		Input: "Winter (NOV-MAR): MON-FRI 0700-1900, SAT-SUN 0900-1700, Summer (APR-OCT): H24",
		Output: timesheet("01-11", "31-03", "WORK_DAY", "07:00", "19:00", "") +
			timesheet("01-11", "31-03", "WEEKEND", "09:00", "17:00", "") +
			timesheet("01-04", "31-10", "EVERY_DAY", "00:00", "24:00", ""),
	},
	{
		Title:  "Holiday exceptions",
		Input:  "Daily: 0900-1700 except holidays",
		Output: timesheet("01-01", "31-12", "EVERY_DAY", "09:00", "17:00", "HOLIDAY"),
	},
}

// Build は固定テンプレートにスケジュール本文を追記したプロンプトを返す。
func Build(scheduleText string) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n## EXAMPLES\n")
	for i, ex := range Examples {
		b.WriteString("\nExample ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(": ")
		b.WriteString(ex.Title)
		b.WriteString("\nInput: \"")
		b.WriteString(ex.Input)
		b.WriteString("\"\nOutput:\n")
		b.WriteString(ex.Output)
	}
	b.WriteString("\nNow convert the following schedule to AIXM 5.1.1 XML format:\n")
	b.WriteString(scheduleText)
	b.WriteString("\n")
	return b.String()
}

// timesheet は作業例用の timeInterval 要素を2スペースインデントで組み立てる。
func timesheet(startDate, endDate, day, startTime, endTime, excluded string) string {
	var b strings.Builder
	b.WriteString("<aixm:timeInterval>\n")
	b.WriteString("  <aixm:Timesheet>\n")
	b.WriteString("    <aixm:timeReference>UTC</aixm:timeReference>\n")
	b.WriteString("    <aixm:startDate>" + startDate + "</aixm:startDate>\n")
	b.WriteString("    <aixm:endDate>" + endDate + "</aixm:endDate>\n")
	b.WriteString("    <aixm:day>" + day + "</aixm:day>\n")
	b.WriteString("    <aixm:startTime>" + startTime + "</aixm:startTime>\n")
	b.WriteString("    <aixm:endTime>" + endTime + "</aixm:endTime>\n")
	if excluded != "" {
		b.WriteString("    <aixm:excluded>" + excluded + "</aixm:excluded>\n")
	}
	b.WriteString("  </aixm:Timesheet>\n")
	b.WriteString("</aixm:timeInterval>\n")
	return b.String()
}
