package speech

// Every string Kotonoha says lives here. Edit this file to change her
// personality. Keep lines short; VOICEVOX handles the inflection.

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/hammamikhairi/kotonoha/internal/domain"
)

// ── Greeting / Global ────────────────────────────────────────────

// LineGreeting is spoken once at startup.
func LineGreeting(pending int) string {
	if pending == 0 {
		return "おはようございます。すべてのタスクが完了しています。今日もいい日になりますように。"
	}
	return fmt.Sprintf("おはようございます。現在 %d 件のタスクがあります。", pending)
}

func LineBye() string {
	return "お疲れさまでした。またいつでも呼んでくださいね。"
}

func LineHelp() string {
	return "todo <タイトル> で登録、list で一覧、done <番号> で完了、exit で終了です。普通に話しかけてくれても大丈夫ですよ。"
}

// ── Tasks ────────────────────────────────────────────────────────

func LineTaskAdded(title string) string {
	return fmt.Sprintf("タスク「%s」を登録しました。", title)
}

func LineTaskDone(title string) string {
	return fmt.Sprintf("「%s」を完了にしました。お疲れさまです。", title)
}

func LineTaskDoneID(id int) string {
	return fmt.Sprintf("タスク %d を完了にしました。", id)
}

func LineTaskNotFoundID(id int) string {
	return fmt.Sprintf("タスク %d は見つかりませんでした。", id)
}

func LineTaskNotFound() string {
	return "タスクは見つかりませんでした。"
}

func LineBadID() string {
	return "IDが正しくありません。例: done 1"
}

func LineEmptyTitle() string {
	return "タスクの名前を教えてください。例: todo 買い物"
}

func LineTaskCount(n int) string {
	if n == 0 {
		return "現在のタスクはすべて完了しています。"
	}
	return fmt.Sprintf("現在のタスクは %d 件あります。", n)
}

func LineNoTaskAction() string {
	return "タスクの操作はありませんでした。何をしましょうか？"
}

// ── Due reminders ────────────────────────────────────────────────

// LineDueReminder asks whether to start on a task that is due soon.
func LineDueReminder(title string, due domain.Date, now time.Time) string {
	return fmt.Sprintf("「%s」の期限は%sです。今から取りかかりますか？ はい か いいえ で答えてください。", title, dueWhen(due, now))
}

func LineConfirmStart(title string) string {
	return fmt.Sprintf("了解です。「%s」に取りかかりましょう。応援しています。", title)
}

func LineConfirmStartGeneric() string {
	return "了解です。さっそく始めましょう。"
}

func LineDefer() string {
	return "わかりました。また後でお知らせしますね。"
}

func LineAnswerYesNo() string {
	return "すみません、「はい」か「いいえ」で答えてください。"
}

// dueWhen renders a due date relative to today.
func dueWhen(due domain.Date, now time.Time) string {
	today := domain.NewDate(now)
	days := int(due.Sub(today.Time).Round(24*time.Hour) / (24 * time.Hour))
	switch {
	case days < 0:
		return fmt.Sprintf("%d日前", -days)
	case days == 0:
		return "今日"
	case days == 1:
		return "明日"
	case days == 2:
		return "明後日"
	default:
		return fmt.Sprintf("%d月%d日", due.Month(), due.Day())
	}
}

// ── AI ───────────────────────────────────────────────────────────

func LineClassifyFailed() string {
	return "ごめんなさい、よくわかりませんでした。"
}

func LineAIError() string {
	return "ごめんなさい、うまく考えがまとまりませんでした。もう一度お願いします。"
}

func LineStoreError() string {
	return "タスクファイルの読み書きに失敗しました。"
}

// ── Monologue ────────────────────────────────────────────────────

var encouragements = []string{
	"焦らず、自分のペースで進めましょうね。",
	"無理せず、できることからで大丈夫ですよ。",
	"あなたならきっと大丈夫です！",
	"今日も一歩前進ですね。応援しています。",
	"疲れたら、少し休むのも大事ですよ。",
	"頑張りすぎないでくださいね。ことのははいつでも味方です。",
}

var reminders = []string{
	"姿勢を正して頑張りましょう。",
	"水分補給と休憩も忘れずに。",
}

// LineEncouragement returns a random encouragement.
func LineEncouragement() string {
	return encouragements[rand.Intn(len(encouragements))]
}

// LineTimeAnnouncement is the periodic "it's HH:MM" monologue.
func LineTimeAnnouncement(now time.Time) string {
	return fmt.Sprintf("ただいま、%sです。%s%s",
		now.Format("15時04分"),
		reminders[rand.Intn(len(reminders))],
		LineEncouragement(),
	)
}

// CommonLines returns the fixed lines worth caching at startup.
func CommonLines() []string {
	out := []string{
		LineBye(),
		LineAnswerYesNo(),
		LineDefer(),
		LineConfirmStartGeneric(),
		LineClassifyFailed(),
		LineTaskNotFound(),
	}
	return append(out, encouragements...)
}
