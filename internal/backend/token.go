package backend

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenRemaining はJWTのexpクレームから残り有効期間を求める。
// 署名検証は行わない（有効性の最終判断はバックエンドが行う）。
// トークンが不正・expクレームなしの場合はfail openとしてok=falseを返し、
// 呼び出し側はリフレッシュ判定をスキップしてそのまま送信する。
func TokenRemaining(token string, now time.Time) (remaining time.Duration, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, false
	}

	return exp.Time.Sub(now), true
}
