// Package main provides localization for the timelapse CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Output":            "出力先",
		"Session":           "セッション",
		"Source":            "入力ソース",
		"Video and Quality": "動画と品質",
		"Encoder":           "エンコーダ",
		"Debug":             "デバッグ",
		"Logging":           "ログ",

		// Command usages
		"Record time-lapse videos from a camera, a web page or a test pattern.": "カメラ、Webページ、テストパターンからタイムラプス動画を録画します。",
		"Record a time-lapse video.":                  "タイムラプス動画を録画します。",
		"List the H.264 encoders ffmpeg provides.":    "ffmpeg が提供する H.264 エンコーダを一覧表示します。",
		"Show the video track of a recorded MP4 file.": "録画した MP4 ファイルの映像トラックを表示します。",
		"Show version information.":                   "バージョン情報を表示します。",

		// Output flags
		"YAML configuration file": "YAML設定ファイル",
		"Output MP4 path ({n} = session number, {time} = start time)": "出力MP4のパス（{n} = セッション番号, {time} = 開始時刻）",
		"Write a summary of each session to this path (Markdown, or YAML for .yaml)": "各セッションのサマリーをこのパスに出力（Markdown、.yaml ならYAML）",

		// Session flags
		"Stop recording after this wall-clock duration (0 = until interrupted)": "この実時間の経過後に録画を停止（0 = 中断まで）",
		"Toggle recording on each line read from stdin":                         "標準入力から1行読むごとに録画を切り替え",

		// Source flags
		"Frame source (pattern, camera or chrome)": "フレームソース（pattern, camera, chrome）",
		"Page to capture with the chrome source":   "chrome ソースでキャプチャするページ",
		"Camera device for the camera source":      "camera ソースのカメラデバイス",
		"Path to Chrome executable":                "Chrome実行ファイルのパス",
		"Run browser in non-headless mode":         "ブラウザを非ヘッドレスモードで実行",

		// Video flags
		"Video width":                                    "動画の幅",
		"Video height":                                   "動画の高さ",
		"Playback frame rate":                            "再生フレームレート",
		"Bitrate preset (low, medium or high)":           "ビットレートプリセット（low, medium, high）",
		"Bitrate in bits per second (overrides quality)": "ビットレート（bps、品質指定より優先）",
		"Seconds between keyframes":                      "キーフレーム間隔（秒）",
		"Wall-clock time between sampled frames":         "フレームを採取する実時間の間隔",
		"Chroma interleave mode (literal or full)":       "色差インターリーブ方式（literal, full）",

		// Encoder flags
		"ffmpeg encoder name, or auto to prefer hardware":                   "ffmpeg エンコーダ名、または auto でハードウェア優先",
		"Fail instead of falling back to libx264":                           "libx264 にフォールバックせずに失敗する",
		"Path to the ffmpeg executable (falls back to FFMPEG_PATH, then PATH)": "ffmpeg 実行ファイルのパス（FFMPEG_PATH、PATH の順に検索）",
		"Probe the encoders and show which one auto selects":                "エンコーダを試験し auto で選ばれるものを表示",

		// Debug flags
		"Enable debug output":        "デバッグ出力を有効化",
		"Directory for debug output": "デバッグ出力のディレクトリ",

		// Logging flags
		"Log level (debug, info, warn, error)": "ログレベル（debug, info, warn, error）",
		"Suppress all log output":              "全てのログ出力を抑制",

		// Runtime messages
		"timelapse version %s":                   "timelapse バージョン %s",
		"Using encoder %s (%s)":                  "エンコーダ %s (%s) を使用します",
		"Interrupted, shutting down...":          "中断されました。シャットダウン中...",
		"Press Enter to start or stop recording": "Enter キーで録画を開始・停止します",
		"Summary saved to %s":                    "サマリーを %s に保存しました",
		"Failed to write summary: %s":            "サマリーの書き込みに失敗しました: %s",
		"Failed to probe %s: %s":                 "%s の解析に失敗しました: %s",
		"Selected: %s (%s)":                      "選択: %s (%s)",
		"A single MP4 file argument is required": "MP4ファイルの引数を1つ指定してください",
		"File: %s (%d bytes)":                    "ファイル: %s (%d バイト)",
		"Codec: %s %dx%d":                        "コーデック: %s %dx%d",
		"Samples: %d (%d keyframes)":             "サンプル数: %d (キーフレーム %d)",
		"Fragments: %d":                          "フラグメント数: %d",
		"Duration: %s (%.2f fps)":                "再生時間: %s (%.2f fps)",
		"hardware":                               "ハードウェア",
		"software":                               "ソフトウェア",

		// Summary content
		"Timelapse Summary":       "タイムラプス概要",
		"Item":                    "項目",
		"Value":                   "値",
		"Started":                 "開始日時",
		"Recorded For":            "録画時間",
		"Video":                   "動画",
		"Resolution":              "解像度",
		"Duration":                "再生時間",
		"Frames Written":          "書き込みフレーム数",
		"Keyframes":               "キーフレーム数",
		"Fragments":               "フラグメント数",
		"File Size":               "ファイルサイズ",
		"Speedup":                 "早送り倍率",
		"Frames":                  "フレーム",
		"Seen":                    "受信",
		"Sampled":                 "採取",
		"Encoded":                 "エンコード",
		"Dropped (encoder busy)":  "破棄（エンコーダ処理中）",
		"Dropped (size mismatch)": "破棄（サイズ不一致）",
		"Settings":                "設定",
		"Bitrate":                 "ビットレート",
		"Frame Rate":              "フレームレート",
		"Keyframe Interval":       "キーフレーム間隔",
		"Sample Interval":         "採取間隔",
		"Chroma Merge":            "色差マージ",
		"Generated at":            "生成日時",
	})
}
