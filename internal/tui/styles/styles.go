package styles

import "github.com/charmbracelet/lipgloss"

// Oxocarbon color scheme - IBM Carbon inspired
var (
	OxocarbonBlack  = lipgloss.Color("#161616")
	OxocarbonBase00 = lipgloss.Color("#262626")
	OxocarbonBase01 = lipgloss.Color("#393939")
	OxocarbonBase02 = lipgloss.Color("#525252")
	OxocarbonBase03 = lipgloss.Color("#767676")
	OxocarbonBase04 = lipgloss.Color("#dde1e6")
	OxocarbonBase05 = lipgloss.Color("#f2f4f8")
	OxocarbonWhite  = lipgloss.Color("#ffffff")

	OxocarbonTeal    = lipgloss.Color("#3ddbd9")
	OxocarbonBlue    = lipgloss.Color("#78a9ff")
	OxocarbonPink    = lipgloss.Color("#ee5396")
	OxocarbonRed     = lipgloss.Color("#ff5252")
	OxocarbonCyan    = lipgloss.Color("#33b1ff")
	OxocarbonGreen   = lipgloss.Color("#42be65")
	OxocarbonPurple  = lipgloss.Color("#be95ff") // main accent
	OxocarbonMauve   = lipgloss.Color("#d1aaff")
)

var (
	AppStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(OxocarbonBase01)

	TitleStyle = lipgloss.NewStyle().
			Foreground(OxocarbonWhite).
			Background(OxocarbonPurple).
			Padding(0, 1).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(OxocarbonMauve).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(OxocarbonBase03).
			MarginTop(1)

	MetadataStyle = lipgloss.NewStyle().
			Foreground(OxocarbonBase04)

	NormalItemStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			Foreground(OxocarbonBase05)

	SelectedItemStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Foreground(OxocarbonPurple).
				Bold(true)

	ItemBorderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(OxocarbonBase02).
			BorderLeft(true).
			BorderTop(false).
			BorderRight(false).
			BorderBottom(false).
			PaddingLeft(2).
			PaddingRight(2).
			MarginLeft(3)

	ItemBorderSelectedStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.ThickBorder()).
				BorderForeground(OxocarbonPurple).
				BorderLeft(true).
				BorderTop(false).
				BorderRight(false).
				BorderBottom(false).
				PaddingLeft(2).
				PaddingRight(2).
				MarginLeft(3)

	ProgressStyle = lipgloss.NewStyle().
			Foreground(OxocarbonPurple)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(OxocarbonRed).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(OxocarbonGreen)

	FooterStyle = lipgloss.NewStyle().
			Foreground(OxocarbonBase05).
			Background(OxocarbonBase01).
			Padding(0, 1)

	PopupStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(OxocarbonPurple).
			Padding(1, 2).
			Background(OxocarbonBase00).
			Foreground(OxocarbonBase05)

	URLStyle = lipgloss.NewStyle().
			Foreground(OxocarbonCyan).
			Italic(true)
)
