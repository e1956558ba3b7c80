package domain

import "time"

// DefaultAvatar is shown for players created before avatars were assigned
const DefaultAvatar = "default"

// Snapshot is the client view of a room. It never carries persistent ids.
type Snapshot struct {
	RoomCode              string                `json:"roomCode"`
	Phase                 Phase                 `json:"phase"`
	Started               bool                  `json:"started"`
	IsConcluded           bool                  `json:"isConcluded"`
	CurrentQuestionIndex  int                   `json:"currentQuestionIndex"`
	TotalQuestions        int                   `json:"totalQuestions"`
	CurrentQuestion       *QuestionView         `json:"currentQuestion"`
	TimeLimit             TimeLimit             `json:"timeLimit"`
	QuestionStartTime     *time.Time            `json:"questionStartTime"`
	SubmissionPhaseOver   bool                  `json:"submissionPhaseOver"`
	IsCommunityVotingMode bool                  `json:"isCommunityVotingMode"`
	IsPointsMode          bool                  `json:"isPointsMode"`
	GameMaster            GameMasterView        `json:"gameMaster"`
	Players               []PlayerView          `json:"players"`
	Answers               map[string]AnswerView `json:"answers"`
	Votes                 map[string]string     `json:"votes"`
	VoteCounts            map[string]int        `json:"voteCounts"`
	Boards                map[string]BoardView  `json:"boards"`
	GameMasterBoardData   *string               `json:"gameMasterBoardData"`
	ServerTime            time.Time             `json:"serverTime"`
}

// QuestionView is a question as shown to clients
type QuestionView struct {
	Index    int          `json:"index"`
	Text     string       `json:"text"`
	Kind     QuestionKind `json:"kind"`
	Category string       `json:"category,omitempty"`
	ImageURL string       `json:"imageUrl,omitempty"`
	Answer   *string      `json:"answer"`
}

// GameMasterView identifies the GM seat
type GameMasterView struct {
	ID           string `json:"id"`
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name"`
	IsActive     bool   `json:"isActive"`
}

// PlayerView is the public view of a player
type PlayerView struct {
	ID           string           `json:"id"`
	ConnectionID string           `json:"connectionId"`
	Name         string           `json:"name"`
	Avatar       string           `json:"avatar"`
	Lives        int              `json:"lives"`
	IsActive     bool             `json:"isActive"`
	IsSpectator  bool             `json:"isSpectator"`
	IsEliminated bool             `json:"isEliminated"`
	IsGameMaster bool             `json:"isGameMaster"`
	Status       ConnectionStatus `json:"status"`
	Score        int              `json:"score"`
	Streak       int              `json:"streak"`
	Position     *int             `json:"position"`
	HasAnswered  bool             `json:"hasAnswered"`
}

// AnswerView is an answer as shown to clients
type AnswerView struct {
	Answer        string    `json:"answer"`
	HasDrawing    bool      `json:"hasDrawing"`
	DrawingData   string    `json:"drawingData,omitempty"`
	IsCorrect     *bool     `json:"isCorrect"`
	AutoSubmitted bool      `json:"autoSubmitted"`
	Timestamp     time.Time `json:"timestamp"`
}

// BoardView is a live board as shown to clients
type BoardView struct {
	PlayerID   string    `json:"playerId"`
	RoundIndex int       `json:"roundIndex"`
	Data       string    `json:"data"`
	Timestamp  time.Time `json:"timestamp"`
}

// BuildSnapshot projects room into its client view. Apart from ServerTime the
// result depends only on room state.
func BuildSnapshot(r *Room, now time.Time) Snapshot {
	s := Snapshot{
		RoomCode:              r.Code,
		Phase:                 r.Phase(),
		Started:               r.Started,
		IsConcluded:           r.IsConcluded,
		CurrentQuestionIndex:  r.CurrentQuestionIndex,
		TotalQuestions:        len(r.Questions),
		TimeLimit:             r.Settings.TimeLimit,
		SubmissionPhaseOver:   r.SubmissionPhaseOver,
		IsCommunityVotingMode: r.Settings.CommunityVoting,
		IsPointsMode:          r.Settings.PointsMode,
		GameMaster: GameMasterView{
			ID:           r.GameMasterPublicID,
			ConnectionID: r.GameMasterConnID,
			Name:         r.GameMasterName,
			IsActive:     r.GameMasterActive,
		},
		Answers:    make(map[string]AnswerView),
		Votes:      make(map[string]string),
		VoteCounts: make(map[string]int),
		Boards:     make(map[string]BoardView),
		ServerTime: now,
	}

	if q := r.CurrentQuestion(); q != nil {
		s.CurrentQuestion = newQuestionView(r.CurrentQuestionIndex, q, r.SubmissionPhaseOver)
		start := r.QuestionStartTime
		s.QuestionStartTime = &start
	}

	players := r.PlayersInOrder()
	s.Players = make([]PlayerView, 0, len(players)+1)
	for _, p := range players {
		_, answered := r.RoundAnswers[p.PersistentID]
		s.Players = append(s.Players, newPlayerView(p, answered))
	}
	if r.needsVirtualGameMaster() {
		s.Players = append(s.Players, r.virtualGameMaster())
	}
	if r.Settings.PointsMode {
		assignPositions(s.Players)
	}

	if r.SubmissionPhaseOver {
		for _, p := range r.Answerers() {
			if a, ok := r.RoundAnswers[p.PersistentID]; ok {
				s.Answers[p.ID] = newAnswerView(a)
			}
		}
	}

	for voter, target := range r.Votes {
		s.Votes[voter] = target
		s.VoteCounts[target]++
	}

	for connID, b := range r.Boards {
		if b.RoundIndex != r.CurrentQuestionIndex {
			continue
		}
		p, ok := r.Players[b.PersistentID]
		if !ok {
			continue
		}
		s.Boards[connID] = BoardView{PlayerID: p.ID, RoundIndex: b.RoundIndex, Data: b.Data, Timestamp: b.Timestamp}
	}
	if b := r.GameMasterBoard; b.HasContent() && b.RoundIndex == r.CurrentQuestionIndex {
		s.Boards[r.GameMasterConnID] = BoardView{
			PlayerID:   r.GameMasterPublicID,
			RoundIndex: b.RoundIndex,
			Data:       b.Data,
			Timestamp:  b.Timestamp,
		}
		data := b.Data
		s.GameMasterBoardData = &data
	}

	return s
}

func newQuestionView(index int, q *Question, reveal bool) *QuestionView {
	kind := q.Kind
	if kind == "" {
		kind = QuestionText
	}
	v := &QuestionView{
		Index:    index,
		Text:     q.Text,
		Kind:     kind,
		Category: q.Category,
		ImageURL: q.ImageURL,
	}
	if reveal && q.Answer != "" {
		answer := q.Answer
		v.Answer = &answer
	}
	return v
}

// newPlayerView back-fills defaults for records missing newer fields
func newPlayerView(p *Player, answered bool) PlayerView {
	name := p.Name
	if name == "" {
		name = "Player"
	}
	avatar := p.Avatar
	if avatar == "" {
		avatar = DefaultAvatar
	}
	lives := p.Lives
	if lives < 0 {
		lives = 0
	}
	score, streak := p.Score, p.Streak
	if score < 0 {
		score = 0
	}
	if streak < 0 {
		streak = 0
	}
	return PlayerView{
		ID:           p.ID,
		ConnectionID: p.ConnectionID,
		Name:         name,
		Avatar:       avatar,
		Lives:        lives,
		IsActive:     p.IsActive,
		IsSpectator:  p.IsSpectator,
		IsEliminated: p.IsEliminated(),
		Status:       p.Status(),
		Score:        score,
		Streak:       streak,
		HasAnswered:  answered,
	}
}

func newAnswerView(a *Answer) AnswerView {
	text := a.Text
	if text == "" {
		text = PlaceholderAnswer
	}
	return AnswerView{
		Answer:        text,
		HasDrawing:    a.HasDrawing,
		DrawingData:   a.DrawingData,
		IsCorrect:     a.IsCorrect,
		AutoSubmitted: a.AutoSubmitted,
		Timestamp:     a.Timestamp,
	}
}

func (r *Room) needsVirtualGameMaster() bool {
	if r.gmSeat == nil {
		return false
	}
	_, present := r.PlayerByPublicID(r.GameMasterPublicID)
	return !present
}

func (r *Room) virtualGameMaster() PlayerView {
	_, answered := r.RoundAnswers[r.gmSeat.PersistentID]
	v := newPlayerView(r.gmSeat, answered || r.GameMasterBoard.HasContent())
	v.ConnectionID = r.GameMasterConnID
	v.IsGameMaster = true
	return v
}

// assignPositions sets competition ranking by score for non-spectators
func assignPositions(players []PlayerView) {
	for i := range players {
		if players[i].IsSpectator {
			continue
		}
		pos := 1
		for j := range players {
			if !players[j].IsSpectator && players[j].Score > players[i].Score {
				pos++
			}
		}
		players[i].Position = &pos
	}
}
