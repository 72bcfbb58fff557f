package handler

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/liuyao-cms/internal/view"
)

// flashCookieName はリダイレクト後に表示する通知を運ぶCookieの名前。
const flashCookieName = "console_flash"

// maxFlashes を超える通知は捨てる。
const maxFlashes = 4

func successFlash(msg string) view.Flash { return view.Flash{Kind: view.FlashSuccess, Message: msg} }
func warningFlash(msg string) view.Flash { return view.Flash{Kind: view.FlashWarning, Message: msg} }
func errorFlash(msg string) view.Flash   { return view.Flash{Kind: view.FlashError, Message: msg} }

// setFlashes は次のGETで一度だけ表示する通知をCookieに保存する。
func setFlashes(w http.ResponseWriter, secure bool, flashes []view.Flash) {
	if len(flashes) == 0 {
		return
	}
	if len(flashes) > maxFlashes {
		flashes = flashes[:maxFlashes]
	}
	data, err := json.Marshal(flashes)
	if err != nil {
		slog.Error("failed to encode flash", slog.String("error", err.Error()))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlashes はCookieの通知を読み出して削除する。壊れた値は無視する。
func popFlashes(w http.ResponseWriter, r *http.Request, secure bool) []view.Flash {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})

	data, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var flashes []view.Flash
	if err := json.Unmarshal(data, &flashes); err != nil {
		return nil
	}
	return flashes
}
