package canvas

// The fixed theological block vocabulary. TEXTO_BASE is the anchor type
// everything else groups under.
const (
	BlockTypeTextoBase         = "TEXTO_BASE"
	BlockTypeExegese           = "EXEGESE"
	BlockTypeAplicacao         = "APLICACAO"
	BlockTypeIntroducao        = "INTRODUCAO"
	BlockTypeConclusao         = "CONCLUSAO"
	BlockTypeIlustracao        = "ILUSTRACAO"
	BlockTypeContextoHistorico = "CONTEXTO_HISTORICO"
	BlockTypeOracao            = "ORACAO"
	BlockTypeTopico            = "TOPICO"
	BlockTypeCitacao           = "CITACAO"
	BlockTypePergunta          = "PERGUNTA"
	BlockTypeTransicao         = "TRANSICAO"
	BlockTypeApelo             = "APELO"
	BlockTypeDefinicao         = "DEFINICAO"
	BlockTypeComparacao        = "COMPARACAO"
	BlockTypeTestemunho        = "TESTEMUNHO"
	BlockTypeEstatistica       = "ESTATISTICA"
	BlockTypeInsight           = "INSIGHT"
	BlockTypeNotaPessoal       = "NOTA_PESSOAL"
)

var knownTypes = map[string]bool{
	BlockTypeTextoBase:         true,
	BlockTypeExegese:           true,
	BlockTypeAplicacao:         true,
	BlockTypeIntroducao:        true,
	BlockTypeConclusao:         true,
	BlockTypeIlustracao:        true,
	BlockTypeContextoHistorico: true,
	BlockTypeOracao:            true,
	BlockTypeTopico:            true,
	BlockTypeCitacao:           true,
	BlockTypePergunta:          true,
	BlockTypeTransicao:         true,
	BlockTypeApelo:             true,
	BlockTypeDefinicao:         true,
	BlockTypeComparacao:        true,
	BlockTypeTestemunho:        true,
	BlockTypeEstatistica:       true,
	BlockTypeInsight:           true,
	BlockTypeNotaPessoal:       true,
}

func IsKnownType(blockType string) bool {
	return knownTypes[blockType]
}
