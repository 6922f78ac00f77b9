package output

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wavelength-media/wavelength/internal/core"
	"github.com/wavelength-media/wavelength/pkg/wl"
)

// HumanPrinter prints human-readable output.
type HumanPrinter struct{}

// Print renders human output.
func (HumanPrinter) Print(v any) error {
	switch data := v.(type) {
	case core.NodesResult:
		return printNodes(data)
	case core.StatusResult:
		return printStatus(data)
	case core.SessionResult:
		return printSession(data)
	case core.TrackListResult:
		return printTracks(data.Tracks)
	case core.UploadResult:
		return printUpload(data)
	case core.RecentSearchesResult:
		return printRecentSearches(data)
	case core.PlaylistListResult:
		return printPlaylists(data)
	case core.PlaylistShowResult:
		return printPlaylistShow(data)
	case core.FeedListResult:
		return printFeeds(data)
	case core.EpisodeListResult:
		return printTracks(data.Episodes)
	case core.RawResult:
		return printRaw(data)
	default:
		_, err := fmt.Fprintln(os.Stdout, "ok")
		return err
	}
}

func printNodes(result core.NodesResult) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "NAME\tKIND\tNODE_ID"); err != nil {
		return err
	}
	for _, node := range result.Nodes {
		_, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", node.Name, node.Kind, node.NodeID)
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printStatus(result core.StatusResult) error {
	status := "unknown"
	position := ""
	volume := ""
	item := ""
	owner := ""
	queue := ""

	if result.State.Playback != nil {
		status = result.State.Playback.Status
		position = formatPosition(result.State.Playback.PositionMS, result.State.Playback.DurationMS)
		volume = fmt.Sprintf("vol %d%%", int(result.State.Playback.Volume*100+0.5))
		if result.State.Playback.Volume == 0 {
			volume = "muted"
		}
	}
	if result.State.Current != nil {
		item = formatTrack(result.State.Current)
	}
	if result.State.Queue != nil {
		queue = fmt.Sprintf("Queue: %d tracks (index %d)", result.State.Queue.Length, result.State.Queue.Index)
	}
	if result.State.Session != nil {
		owner = fmt.Sprintf("owner %s", result.State.Session.Owner)
	}

	line := strings.TrimSpace(fmt.Sprintf("%s  [%s]  %s  %s  %s", result.Player.Name, status, item, position, volume))
	if _, err := fmt.Fprintln(os.Stdout, line); err != nil {
		return err
	}
	if queue != "" || owner != "" {
		_, err := fmt.Fprintf(os.Stdout, "%s %s\n", queue, owner)
		return err
	}
	return nil
}

func printSession(result core.SessionResult) error {
	expires := time.Unix(result.Session.ExpiresAt, 0).Format(time.RFC3339)
	_, err := fmt.Fprintf(os.Stdout, "session %s expires %s\n", result.Session.ID, expires)
	return err
}

func printTracks(tracks []wl.MediaRecord) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "NAME\tTYPE\tARTIST\tSIZE\tMEDIA_ID"); err != nil {
		return err
	}
	for _, track := range tracks {
		_, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", track.Name, track.Type, track.Artist, FormatSize(track.Size), track.ID)
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printUpload(result core.UploadResult) error {
	_, err := fmt.Fprintf(os.Stdout, "uploaded %s (%s, %s) as %s\n",
		result.Record.Name, result.Record.Type, FormatSize(result.Record.Size), result.Record.ID)
	return err
}

func printRecentSearches(result core.RecentSearchesResult) error {
	if len(result.Queries) == 0 {
		_, err := fmt.Fprintln(os.Stdout, "(none)")
		return err
	}
	for _, query := range result.Queries {
		if _, err := fmt.Fprintln(os.Stdout, query); err != nil {
			return err
		}
	}
	return nil
}

func printPlaylists(result core.PlaylistListResult) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "NAME\tTYPE\tTRACKS\tPLAYLIST_ID"); err != nil {
		return err
	}
	for _, pl := range result.Playlists {
		_, err := fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", pl.Name, pl.Type, len(pl.Items), pl.ID)
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printPlaylistShow(result core.PlaylistShowResult) error {
	pl := result.Playlist
	if _, err := fmt.Fprintf(os.Stdout, "%s (%s, %d tracks)\n", pl.Name, pl.Type, len(pl.Songs)); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "INDEX\tNAME\tARTIST\tSIZE\tMEDIA_ID"); err != nil {
		return err
	}
	for idx, song := range pl.Songs {
		_, err := fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", idx, song.Name, song.Artist, FormatSize(song.Size), song.ID)
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printFeeds(result core.FeedListResult) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "TITLE\tEPISODES\tFEED_ID\tURL"); err != nil {
		return err
	}
	for _, feed := range result.Feeds {
		_, err := fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", feed.Title, feed.Episodes, feed.FeedID, feed.URL)
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printRaw(result core.RawResult) error {
	raw, err := rawBytes(result.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(raw))
	return err
}

func rawBytes(data any) ([]byte, error) {
	switch val := data.(type) {
	case json.RawMessage:
		return val, nil
	case []byte:
		return val, nil
	default:
		out, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

// FormatSize renders a byte count using 1024-based units, trimming
// trailing zeros: 0 -> "0 Bytes", 1024 -> "1 KB", 1536 -> "1.5 KB".
func FormatSize(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB", "TB"}
	exp := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if exp >= len(units) {
		exp = len(units) - 1
	}
	value := float64(bytes) / math.Pow(1024, float64(exp))
	rounded := math.Round(value*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + units[exp]
}

func formatPosition(pos, dur int64) string {
	if pos == 0 && dur == 0 {
		return ""
	}
	if dur > 0 {
		percent := (pos * 100) / dur
		return fmt.Sprintf("%s / %s (%d%%)", formatMS(pos), formatMS(dur), percent)
	}
	return fmt.Sprintf("%s / %s", formatMS(pos), formatMS(dur))
}

func formatMS(ms int64) string {
	if ms <= 0 {
		return "0:00"
	}
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func formatTrack(current *wl.CurrentTrack) string {
	if current.Artist != "" && current.Name != "" {
		return fmt.Sprintf("%s - %s", current.Artist, current.Name)
	}
	if current.Name != "" {
		return current.Name
	}
	return current.URL
}
