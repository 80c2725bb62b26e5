// Пакет model — доменные модели каталога реплеев.
// Замкнутые перечисления (лига, формат игроков, дополнение, статус)
// представлены именованными строковыми типами с Parse-конструкторами.
package model

import "fmt"

// League — лига игроков в реплее.
type League string

const (
	LeagueBronze      League = "bronze"
	LeagueSilver      League = "silver"
	LeagueGold        League = "gold"
	LeaguePlatinum    League = "platinum"
	LeagueDiamond     League = "diamond"
	LeagueMaster      League = "master"
	LeagueGrandMaster League = "grand_master"
)

// Leagues — все допустимые лиги в порядке возрастания.
var Leagues = []League{
	LeagueBronze, LeagueSilver, LeagueGold, LeaguePlatinum,
	LeagueDiamond, LeagueMaster, LeagueGrandMaster,
}

// Valid проверяет принадлежность лиги замкнутому набору.
func (l League) Valid() bool {
	switch l {
	case LeagueBronze, LeagueSilver, LeagueGold, LeaguePlatinum,
		LeagueDiamond, LeagueMaster, LeagueGrandMaster:
		return true
	default:
		return false
	}
}

// ParseLeague преобразует строку в League.
func ParseLeague(s string) (League, error) {
	l := League(s)
	if !l.Valid() {
		return "", fmt.Errorf("недопустимая лига: %q", s)
	}
	return l, nil
}

// PlayerFormat — формат матча (количество игроков).
type PlayerFormat string

const (
	Players1v1 PlayerFormat = "1v1"
	Players2v2 PlayerFormat = "2v2"
	Players3v3 PlayerFormat = "3v3"
	Players4v4 PlayerFormat = "4v4"
	PlayersFFA PlayerFormat = "FFA"
)

// PlayerFormats — все допустимые форматы матча.
var PlayerFormats = []PlayerFormat{Players1v1, Players2v2, Players3v3, Players4v4, PlayersFFA}

// Valid проверяет принадлежность формата замкнутому набору.
func (p PlayerFormat) Valid() bool {
	switch p {
	case Players1v1, Players2v2, Players3v3, Players4v4, PlayersFFA:
		return true
	default:
		return false
	}
}

// ParsePlayerFormat преобразует строку в PlayerFormat.
func ParsePlayerFormat(s string) (PlayerFormat, error) {
	p := PlayerFormat(s)
	if !p.Valid() {
		return "", fmt.Errorf("недопустимый формат игроков: %q", s)
	}
	return p, nil
}

// ExpansionPack — дополнение игры, в котором записан реплей.
type ExpansionPack string

const (
	// ExpansionLotV — Legacy of the Void
	ExpansionLotV ExpansionPack = "LotV"
)

// ExpansionPacks — все поддерживаемые дополнения.
var ExpansionPacks = []ExpansionPack{ExpansionLotV}

// Valid проверяет принадлежность дополнения замкнутому набору.
func (e ExpansionPack) Valid() bool {
	switch e {
	case ExpansionLotV:
		return true
	default:
		return false
	}
}

// ParseExpansionPack преобразует строку в ExpansionPack.
func ParseExpansionPack(s string) (ExpansionPack, error) {
	e := ExpansionPack(s)
	if !e.Valid() {
		return "", fmt.Errorf("недопустимое дополнение: %q", s)
	}
	return e, nil
}

// Status — статус жизненного цикла реплея.
type Status string

const (
	// StatusNew — загружен, ожидает модерации
	StatusNew Status = "new"
	// StatusRejected — отклонён; терминальный статус, артефакт удалён
	StatusRejected Status = "rejected"
	// StatusSuggested — предложен к показу
	StatusSuggested Status = "suggested"
	// StatusBroadcasted — показан в эфире
	StatusBroadcasted Status = "broadcasted"
	// StatusDownloaded — скачан администратором
	StatusDownloaded Status = "downloaded"
)

// Statuses — все статусы жизненного цикла.
var Statuses = []Status{StatusNew, StatusRejected, StatusSuggested, StatusBroadcasted, StatusDownloaded}

// Valid проверяет принадлежность статуса замкнутому набору.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusRejected, StatusSuggested, StatusBroadcasted, StatusDownloaded:
		return true
	default:
		return false
	}
}

// RequiresArtifact сообщает, обязан ли реплей в этом статусе иметь артефакт.
// Только rejected может существовать без загруженного файла.
func (s Status) RequiresArtifact() bool {
	switch s {
	case StatusRejected:
		return false
	case StatusNew, StatusSuggested, StatusBroadcasted, StatusDownloaded:
		return true
	default:
		return true
	}
}

// Terminal сообщает, является ли статус терминальным для жизненного цикла.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected:
		return true
	case StatusNew, StatusSuggested, StatusBroadcasted, StatusDownloaded:
		return false
	default:
		return false
	}
}

// ParseStatus преобразует строку в Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("недопустимый статус: %q, допустимые: new, rejected, suggested, broadcasted, downloaded", s)
	}
	return st, nil
}
