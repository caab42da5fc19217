package agent

import (
	"fmt"
	"io"
	"sync"

	"github.com/nao1215/pulse/pkg/event"
)

// Presenter は受信した通知をユーザーへ提示するインターフェース。
// 各メソッドは独立しており、1つの提示が失敗しても他の提示を妨げない。
type Presenter interface {
	// Notify はシステムレベルの通知を表示する。
	Notify(item event.Item)
	// Toast は一時的なメッセージを表示する。
	Toast(item event.Item)
	// IncrementUnseen は未確認通知のカウンタを1増やす。
	IncrementUnseen()
	// ClearUnseen は未確認通知のカウンタをリセットする。
	// ユーザーが画面に注意を向けたときに呼び出される。
	ClearUnseen()
	// PlaySound は通知音を再生する。失敗しても無視される。
	PlaySound()
}

// ConsolePresenter は通知を端末に表示するPresenter実装。
// 未確認カウンタは端末タイトルのバッジとして反映する。
type ConsolePresenter struct {
	// mu はunseenカウンタへの排他アクセスを保証する。
	mu sync.Mutex
	// out は表示の出力先。通常はos.Stdout。
	out io.Writer
	// unseen は未確認通知の件数。
	unseen int
}

// NewConsolePresenter は新しい端末向けPresenterを生成する。
func NewConsolePresenter(out io.Writer) *ConsolePresenter {
	return &ConsolePresenter{out: out}
}

// Notify は通知のタイトル・本文・URLを端末に表示する。
func (p *ConsolePresenter) Notify(item event.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// 書き込み失敗で他の提示を止めない
	fmt.Fprintf(p.out, "[通知] %s: %s (%s)\n", item.Title, item.Body, item.URL)
}

// Toast は通知の本文を短い形式で表示する。
func (p *ConsolePresenter) Toast(item event.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "> %s\n", item.Body)
}

// IncrementUnseen は未確認カウンタを増やし、端末タイトルに反映する。
func (p *ConsolePresenter) IncrementUnseen() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unseen++
	p.updateTitle()
}

// ClearUnseen は未確認カウンタをリセットし、端末タイトルを戻す。
func (p *ConsolePresenter) ClearUnseen() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unseen == 0 {
		return
	}
	p.unseen = 0
	p.updateTitle()
}

// PlaySound は端末のベルを鳴らす。対応していない端末では単に無視される。
func (p *ConsolePresenter) PlaySound() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, "\a")
}

// Unseen は現在の未確認通知の件数を返す。
func (p *ConsolePresenter) Unseen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unseen
}

// updateTitle は未確認件数を端末タイトルのバッジとして設定する。
// 呼び出し側でmuを保持していること。
func (p *ConsolePresenter) updateTitle() {
	if p.unseen > 0 {
		fmt.Fprintf(p.out, "\033]0;(%d) Pulse\a", p.unseen)
		return
	}
	fmt.Fprint(p.out, "\033]0;Pulse\a")
}
