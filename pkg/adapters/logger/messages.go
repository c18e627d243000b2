package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Recorder
		"Recording started: %s (%dx%d)":              "録画を開始しました: %s (%dx%d)",
		"Recording stopped: %d frames written to %s": "録画を停止しました: %d フレームを %s に書き込みました",
		"Recording stopped with errors: %s":          "録画の停止中にエラーが発生しました: %s",
		"Failed to start recording: %s":              "録画の開始に失敗しました: %s",
		"Frame %dx%d does not match session %dx%d, dropped": "フレーム %dx%d がセッション %dx%d と一致しないため破棄しました",
		"Frame dropped: %s":                  "フレームを破棄しました: %s",
		"Failed to submit frame: %s":         "フレームの投入に失敗しました: %s",
		"Failed to save sampled frame: %s":   "サンプルフレームの保存に失敗しました: %s",
		"Failed to write encoder output: %s": "エンコーダ出力の書き込みに失敗しました: %s",
		"Encoder busy, sampled frame dropped": "エンコーダが処理中のためサンプルフレームを破棄しました",

		// Encode stage
		"Encoder running: %s %dx%d, %d bps, %d fps, keyframe every %d s": "エンコーダ動作中: %s %dx%d, %d bps, %d fps, キーフレーム間隔 %d 秒",
		"Encoder cleanup after failed start: %s":         "開始失敗後のエンコーダ後片付け: %s",
		"Encoder teardown step %s failed: %s":            "エンコーダ終了処理 %s に失敗しました: %s",
		"No free input slot, frame dropped":              "空き入力スロットがないためフレームを破棄しました",
		"Final drain wrote %d units (end of stream: %t)": "最終ドレインで %d ユニットを書き込みました (ストリーム終端: %t)",
		"Failed to release output buffer %d: %s":         "出力バッファ %d の解放に失敗しました: %s",
		"Output format changed again, ignored":           "出力フォーマットが再度変更されたため無視しました",
		"Output buffer arrived before the track was ready, dropped": "トラック準備前に出力バッファが届いたため破棄しました",

		// Mux stage and container
		"Container opened: %s":                   "コンテナを開きました: %s",
		"Container closed with %d samples: %s":   "%d サンプルでコンテナを閉じました: %s",
		"Container cleanup after failed start: %s": "開始失敗後のコンテナ後片付け: %s",
		"Failed to finalize container: %s":       "コンテナの確定に失敗しました: %s",
		"Failed to release container: %s":        "コンテナの解放に失敗しました: %s",
		"Track %d registered: %s %dx%d":          "トラック %d を登録しました: %s %dx%d",
		"Track %d ready: %dx%d":                  "トラック %d の準備ができました: %dx%d",
		"Failed to parse SPS: %s":                "SPS の解析に失敗しました: %s",

		// ffmpeg
		"ffmpeg started: %s %v":                    "ffmpeg を起動しました: %s %v",
		"ffmpeg did not finish within %s, killing it": "ffmpeg が %s 以内に終了しなかったため強制終了します",
		"Encoder %s not usable, falling back: %s":  "エンコーダ %s は使用できないためフォールバックします: %s",

		// Sources
		"Screencast started: %s (%dx%d)":         "スクリーンキャストを開始しました: %s (%dx%d)",
		"Failed to decode screencast frame: %s":  "スクリーンキャストフレームのデコードに失敗しました: %s",
		"Camera read failed: %s":                 "カメラの読み取りに失敗しました: %s",
	})
}
