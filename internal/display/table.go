package display

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/hemantobora/mcc/internal/inventory"
	"github.com/hemantobora/mcc/internal/models"
)

const noAddress = "-"

var (
	indexHeaders = []string{"NUM", "NAME", "REGION", "CLOUD", "SIZE", "PUBLIC IP", "STATE"}
	listHeaders  = indexHeaders[1:]
)

// IndexTable renders the numbered table used by the interactive mode
func IndexTable(inv *inventory.Inventory, theme *Theme) (string, error) {
	return render(inv.Instances(), theme, true)
}

// ListTable renders the table for list-only mode, without numbers
func ListTable(inv *inventory.Inventory, theme *Theme) (string, error) {
	return render(inv.Instances(), theme, false)
}

func render(instances []models.Instance, theme *Theme, numbered bool) (string, error) {
	headers := listHeaders
	if numbered {
		headers = indexHeaders
	}
	stateCol := len(headers) - 1

	rows := make([][]string, 0, len(instances))
	stateStyles := make([]lipgloss.Style, 0, len(instances))
	for i, inst := range instances {
		style, err := theme.StateStyle(inst)
		if err != nil {
			return "", err
		}
		stateStyles = append(stateStyles, style)

		ip := inst.PublicIP
		if ip == "" {
			ip = noAddress
		}
		row := []string{inst.Name, inst.Zone, string(inst.Provider), inst.Size, ip, inst.State}
		if numbered {
			row = append([]string{strconv.Itoa(i + 1)}, row...)
		}
		rows = append(rows, row)
	}

	cell := theme.renderer.NewStyle().Padding(0, 2)
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		BorderRow(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow && (col == 0 || col == stateCol):
				return cell.Inherit(theme.Title)
			case row == table.HeaderRow:
				return cell
			case col == stateCol:
				return cell.Inherit(stateStyles[row])
			case numbered && col == 0:
				return cell.Inherit(theme.Number)
			default:
				return cell
			}
		})

	return strings.TrimRight(t.String(), "\n"), nil
}

// Lines returns how many terminal lines s occupies
func Lines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
