package core

type Mode int

const (
	ModeDev Mode = iota
	ModeProd
)

func (m Mode) String() string {
	if m == ModeProd {
		return "production"
	}
	return "development"
}

func ModeFromEnv(nodeEnv string) Mode {
	if nodeEnv == "production" {
		return ModeProd
	}
	return ModeDev
}
